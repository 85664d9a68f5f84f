package ports

// MatrixReader reads a channels×timepoints numeric table from a file.
// Each returned row is one channel.
type MatrixReader interface {
	ReadTable(path string) ([][]float64, error)
}
