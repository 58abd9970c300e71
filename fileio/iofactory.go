package fileio

type IOFactory interface {
	NewWriter() FileWriter
}

// BufferedFactory is the default factory returning buffered writer instances
type BufferedFactory struct{}

func (b *BufferedFactory) NewWriter() FileWriter {
	return new(BufferedWriter)
}
