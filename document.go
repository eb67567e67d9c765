package compactbook

// Language is the fence info string that marks a Compact code block
const Language = "compact"

// Document represents a parsed markdown page containing
// page options and compact code blocks, and any other required metadata about the source file
type Document struct {
	// Metadata about the source file
	Metadata MetaData
	// Page-level pragmas overriding playground options
	Pragmas Pragma
	// The extracted compact code blocks, in document order
	Blocks []CodeBlock
}

type MetaData struct {
	// The source file path
	Source string
}

type PragmaKey string

const (
	PragmaEditable PragmaKey = "editable"
	PragmaAutoRun  PragmaKey = "autorun"
)

// Pragma holds the page-level playground overrides.
//
// A nil field means the page does not override the configured value.
type Pragma struct {
	Editable *bool
	AutoRun  *bool
}

type Position struct {
	// First line of code inside the fence, 1-indexed
	StartLine int
	// Last line of code inside the fence, 1-indexed
	EndLine int
}

type CodeBlock struct {
	// Index of the block among the compact blocks of the page
	Index int
	// The code that was parsed from the markdown source
	Code string
	// The original markdown source file where the code block was found
	Source string
	// Where the code sits in the markdown source
	Position Position
	// Classification of the original code
	Runnable bool
}
