package store

// LabelID is a type-safe identifier for labels.
type LabelID int64

// Package represents a Go package that declares labels or attaches items.
type Package struct {
	PkgPath string `json:"pkg_path"`
	Name    string `json:"name"`
	Module  string `json:"module,omitempty"`
	Dir     string `json:"dir"`
	IsMain  bool   `json:"is_main,omitempty"`
}

// Label represents a declared label.
type Label struct {
	ID        LabelID `json:"id"`
	PkgPath   string  `json:"pkg_path"`
	Name      string  `json:"name"`
	Kind      string  `json:"kind"`      // func, var or const
	Signature string  `json:"signature"` // Go type text, e.g. "func(string) int"
	File      string  `json:"file"`
	Line      int     `json:"line"`
}

// Attachment represents one item attached to a label.
type Attachment struct {
	LabelID  LabelID `json:"label_id"`
	PkgPath  string  `json:"pkg_path"`
	Item     string  `json:"item"`
	ItemKind string  `json:"item_kind"`
	Path     string  `json:"path"` // Label path as written in the directive
	File     string  `json:"file"`
	Line     int     `json:"line"`
}

// LabelSummary is a label together with the number of attachments it has.
type LabelSummary struct {
	Label
	AttachmentCount int `json:"attachment_count"`
}
