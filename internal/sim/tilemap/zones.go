package tilemap

// InteractZone is presentation metadata for proximity UI. It takes no part in
// collision.
type InteractZone struct {
	ID     int     `json:"id"`
	Name   string  `json:"name"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`

	Title   string `json:"title"`
	Message string `json:"message"`
	Kind    string `json:"kind"`

	CTA  string `json:"cta"`
	URL  string `json:"url,omitempty"`
	CTA2 string `json:"cta2,omitempty"`
	URL2 string `json:"url2,omitempty"`

	PreviewImage   string `json:"preview_image,omitempty"`
	PreviewCaption string `json:"preview_caption,omitempty"`

	// Every authored property, untouched.
	Properties map[string]any `json:"properties,omitempty"`
}

// Contains reports whether a world point lies inside the zone rectangle.
func (z InteractZone) Contains(x, y float64) bool {
	return x >= z.X && x < z.X+z.Width && y >= z.Y && y < z.Y+z.Height
}

// ZoneAt returns the first zone, in layer order, containing the point.
func (m *Map) ZoneAt(x, y float64) (InteractZone, bool) {
	for _, z := range m.zones {
		if z.Contains(x, y) {
			return z, true
		}
	}
	return InteractZone{}, false
}

func zoneFromObject(o rawObject) InteractZone {
	props := make(map[string]any, len(o.Properties))
	for _, p := range o.Properties {
		props[p.Name] = p.Value
	}
	str := func(name, def string) string {
		if s, ok := props[name].(string); ok {
			return s
		}
		return def
	}

	// Only an absent type defaults; an authored "" is kept.
	kind := "info"
	if o.Type != nil {
		kind = *o.Type
	}
	z := InteractZone{
		ID:             o.ID,
		Name:           o.Name,
		X:              o.X,
		Y:              o.Y,
		Width:          o.Width,
		Height:         o.Height,
		Title:          str("title", "Interact"),
		Message:        str("message", "No message configured."),
		Kind:           str("kind", kind),
		CTA:            str("cta", "Open"),
		URL:            str("url", ""),
		CTA2:           str("cta2", ""),
		URL2:           str("url2", ""),
		PreviewImage:   str("preview_image", ""),
		PreviewCaption: str("preview_caption", ""),
	}
	if len(props) > 0 {
		z.Properties = props
	}
	return z
}
