package planpb

import (
	"io"

	"github.com/jhump/protoreflect/v2/protoprint"
)

// Render writes plan.proto to w.
func Render(w io.Writer) error {
	s, err := Load()
	if err != nil {
		return err
	}
	pp := protoprint.Printer{}
	return pp.PrintProtoFile(s.File, w)
}
