package model

// Embed is a platform-neutral rich message. The discord adapter maps it to
// the SDK's embed type so services and ui stay SDK-free.
type Embed struct {
	Title       string
	Description string
	Color       int
	ImageURL    string
	Fields      []EmbedField
}

type EmbedField struct {
	Name   string
	Value  string
	Inline bool
}

func (e *Embed) AddField(name, value string, inline bool) {
	e.Fields = append(e.Fields, EmbedField{Name: name, Value: value, Inline: inline})
}
