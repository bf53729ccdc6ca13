package notifier

import (
	"strings"
	"time"

	"sjsage522/listingwatcher/helpers"
	"sjsage522/listingwatcher/internal/crawler"
)

// Message limits and styling of the notification sink
const (
	MaxTitleLength = 256
	AccentColor    = 0x09B1BA
	FooterPrefix   = "Search: "
)

// Field labels
const (
	FieldPrice     = "💰 Price"
	FieldSize      = "📏 Size"
	FieldBrand     = "🏷️ Brand"
	FieldCondition = "✨ Condition"
)

// Payload is the JSON body posted to the webhook
type Payload struct {
	Username  string  `json:"username,omitempty"`
	AvatarURL string  `json:"avatar_url,omitempty"`
	Embeds    []Embed `json:"embeds"`
}

// Embed is one rich message card
type Embed struct {
	Title     string    `json:"title"`
	URL       string    `json:"url,omitempty"`
	Color     int       `json:"color"`
	Timestamp string    `json:"timestamp"`
	Footer    Footer    `json:"footer"`
	Thumbnail Thumbnail `json:"thumbnail"`
	Fields    []Field   `json:"fields"`
}

// Footer is the small print under an embed
type Footer struct {
	Text string `json:"text"`
}

// Thumbnail is the image shown beside an embed
type Thumbnail struct {
	URL string `json:"url"`
}

// Field is a labeled value shown side by side with its neighbours
type Field struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

// BuildEmbed formats an item for the search it was found by. Size, brand and
// condition are left out when they carry their sentinel value.
func BuildEmbed(item crawler.ItemRecord, searchName string, now time.Time) Embed {
	title := item.Title
	if strings.TrimSpace(title) == "" {
		title = crawler.Untitled
	}

	embed := Embed{
		Title:     helpers.Truncate(title, MaxTitleLength),
		URL:       item.URL,
		Color:     AccentColor,
		Timestamp: now.UTC().Format(time.RFC3339),
		Footer:    Footer{Text: FooterPrefix + searchName},
		Thumbnail: Thumbnail{URL: item.Image},
		Fields:    []Field{},
	}

	addField := func(name, value, sentinel string) {
		if value == "" || (sentinel != "" && value == sentinel) {
			return
		}
		embed.Fields = append(embed.Fields, Field{Name: name, Value: value, Inline: true})
	}

	addField(FieldPrice, item.Price, "")
	addField(FieldSize, item.Size, crawler.Unspecified)
	addField(FieldBrand, item.Brand, crawler.UnknownBrand)
	addField(FieldCondition, item.Condition, crawler.Unspecified)

	return embed
}
