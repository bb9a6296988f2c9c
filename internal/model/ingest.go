package model

// IngestEnvelope carries one raw text line with source metadata.
// It is the transport contract between log sources and the event framer.
type IngestEnvelope struct {
	Source string
	Line   string
}
