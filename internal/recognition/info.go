package recognition

// Info describes the OCR backend for the version command.
type Info struct {
	Available bool
	Backend   string
	Version   string
	Error     string
}
