package layout

// Geometry maps wall-clock minutes onto the pixel grid of a day view.
//
// The time axis shows one row per hour from StartHour to EndHour (inclusive),
// each PixelsPerHour tall. Event boxes are placed against the same scale so
// that a box lines up with its time labels.
type Geometry struct {
	StartHour int
	EndHour   int

	PixelsPerHour float64

	// TopMargin shifts every event down from the axis origin.
	TopMargin float64

	// MinHeight is the floor applied to short events. Once an event is taller
	// than the floor, ExtraMargin is added on top of its linear height.
	MinHeight   float64
	ExtraMargin float64

	// ColumnWidth is the horizontal pitch between overlap columns;
	// EventWidth is the width of a single event box.
	ColumnWidth float64
	EventWidth  float64
}

// DefaultGeometry returns the grid used by the schedule page.
func DefaultGeometry() Geometry {
	return Geometry{
		StartHour:     7,
		EndHour:       23,
		PixelsPerHour: 72,
		TopMargin:     20,
		MinHeight:     114,
		ExtraMargin:   20,
		ColumnWidth:   220,
		EventWidth:    200,
	}
}

// PixelsPerMinute derives the vertical scale from PixelsPerHour.
func (g Geometry) PixelsPerMinute() float64 {
	return g.PixelsPerHour / 60
}

// scale converts minutes to pixels. Multiplying before dividing keeps whole
// pixel results exact.
func (g Geometry) scale(minutes int) float64 {
	return float64(minutes) * g.PixelsPerHour / 60
}

// OriginMinutes is the minute value rendered at the top of the axis.
func (g Geometry) OriginMinutes() int {
	return g.StartHour * 60
}

// Offset returns the vertical pixel offset of an event starting at startMinutes.
func (g Geometry) Offset(startMinutes int) float64 {
	return g.scale(startMinutes-g.OriginMinutes()) + g.TopMargin
}

// Height returns the pixel height of an event lasting durationMinutes.
func (g Geometry) Height(durationMinutes int) float64 {
	h := g.scale(durationMinutes)
	if h > g.MinHeight {
		return h + g.ExtraMargin
	}
	return g.MinHeight
}

// Left returns the horizontal pixel offset of a column.
func (g Geometry) Left(column int) float64 {
	return float64(column) * g.ColumnWidth
}

// Slots returns the "HH:00" labels of the time axis.
func (g Geometry) Slots() []string {
	if g.EndHour < g.StartHour {
		return nil
	}
	out := make([]string, 0, g.EndHour-g.StartHour+1)
	for h := g.StartHour; h <= g.EndHour; h++ {
		out = append(out, FormatClock(h*60))
	}
	return out
}

// AxisHeight is the total pixel height of the time axis.
func (g Geometry) AxisHeight() float64 {
	return float64(len(g.Slots())) * g.PixelsPerHour
}
