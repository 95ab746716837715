// Package device holds interfaces shared by HID report producers and the
// transports that deliver them.
package device

// ReportBuilder is implemented by report types that encode to the wire layout
// a HID host expects.
type ReportBuilder interface {
	// BuildReport encodes the report into a byte slice for transmission.
	BuildReport() []byte
}
