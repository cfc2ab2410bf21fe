package blob

import "strings"

// labelReplacer maps figure-label characters that are awkward in paths.
var labelReplacer = strings.NewReplacer(":", "_", "/", "_", ".", "_", " ", "_")

// SanitizeLabel normalizes a figure label for use in an object key.
func SanitizeLabel(label string) string {
	return labelReplacer.Replace(label)
}

// ArchiveKey is the key for a paper's source image archive. ext is "zip"
// for archives packed from LaTeX sources and "pdf" for the original PDF.
func ArchiveKey(sid, ext string) string {
	return "papers/" + sid + "_images." + ext
}

// ImageKey is the key for one extracted figure image.
func ImageKey(sid, label string) string {
	return "images/" + sid + "/" + SanitizeLabel(label) + ".png"
}

// ImagePrefix is the key prefix covering every extracted image of a paper.
func ImagePrefix(sid string) string {
	return "images/" + sid + "/"
}
