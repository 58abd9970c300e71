package fileio

type FileWriter interface {
	New(filename string, bufferSize, qlen int, compress bool) error
	StartWriting() (chan []byte, chan []byte)
	Err() error
}
