package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

func init() {
	// keep pdfcpu from creating a config dir under $HOME
	model.ConfigPath = "disable"
}

// Inspection is the structural view of a PDF before any text is read.
type Inspection struct {
	Pages     int
	Encrypted bool
	Warnings  []string
}

// Inspector runs a relaxed pdfcpu validation and counts pages.
type Inspector struct {
	conf *model.Configuration
}

func NewInspector() *Inspector {
	cfg := model.NewDefaultConfiguration()
	cfg.ValidationMode = model.ValidationRelaxed
	return &Inspector{conf: cfg}
}

// Inspect never fails the document on its own; problems become warnings that the
// text reader may confirm.
func (i *Inspector) Inspect(content []byte) (ins Inspection) {
	defer func() {
		if r := recover(); r != nil {
			ins.Warnings = append(ins.Warnings, fmt.Sprintf("pdfcpu panic: %v", r))
		}
	}()

	if err := api.Validate(bytes.NewReader(content), i.conf); err != nil {
		ins.Warnings = append(ins.Warnings, "validate: "+err.Error())
		if looksEncrypted(err) {
			ins.Encrypted = true
		}
	}
	n, err := api.PageCount(bytes.NewReader(content), i.conf)
	if err != nil {
		ins.Warnings = append(ins.Warnings, "page count: "+err.Error())
		return ins
	}
	ins.Pages = n
	return ins
}

func looksEncrypted(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "password") || strings.Contains(msg, "encrypt")
}
