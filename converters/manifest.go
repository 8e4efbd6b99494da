package converters

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/hashicorp/hcl/v2/hclwrite"
	"github.com/zclconf/go-cty/cty"
	"github.com/zeebo/xxh3"
)

// ManifestName is the file written next to the output units.
const ManifestName = "manifest.hcl"

// Manifest records what a run wrote. Running the same conversion again must
// reproduce every digest when the banner is disabled.
type Manifest struct {
	Format    string         `hcl:"format"`
	Layout    string         `hcl:"layout"`
	BatchSize int            `hcl:"batch_size"`
	Files     []ManifestFile `hcl:"file,block"`
}

// ManifestFile describes one output unit.
type ManifestFile struct {
	Name     string   `hcl:"name,label"`
	Rows     int64    `hcl:"rows"`
	Batches  int64    `hcl:"batches,optional"`
	Bytes    int64    `hcl:"bytes"`
	Digest   string   `hcl:"xxh3"`
	Sections []string `hcl:"sections,optional"`
}

// WriteManifest writes m to path in HCL.
func WriteManifest(path string, m *Manifest) error {
	files := append([]ManifestFile(nil), m.Files...)
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })

	f := hclwrite.NewEmptyFile()
	root := f.Body()
	root.SetAttributeValue("format", cty.StringVal(m.Format))
	root.SetAttributeValue("layout", cty.StringVal(m.Layout))
	root.SetAttributeValue("batch_size", cty.NumberIntVal(int64(m.BatchSize)))

	for _, mf := range files {
		root.AppendNewline()
		body := root.AppendNewBlock("file", []string{mf.Name}).Body()
		body.SetAttributeValue("rows", cty.NumberIntVal(mf.Rows))
		body.SetAttributeValue("batches", cty.NumberIntVal(mf.Batches))
		body.SetAttributeValue("bytes", cty.NumberIntVal(mf.Bytes))
		body.SetAttributeValue("xxh3", cty.StringVal(mf.Digest))
		if len(mf.Sections) > 0 {
			vals := make([]cty.Value, len(mf.Sections))
			for i, s := range mf.Sections {
				vals[i] = cty.StringVal(s)
			}
			body.SetAttributeValue("sections", cty.ListVal(vals))
		}
	}

	if err := os.WriteFile(path, f.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}

// ReadManifest loads a manifest written by WriteManifest.
func ReadManifest(path string) (*Manifest, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	file, diags := hclparse.NewParser().ParseHCL(content, path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse manifest: %s", diags.Error())
	}
	var m Manifest
	if diags := gohcl.DecodeBody(file.Body, nil, &m); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode manifest: %s", diags.Error())
	}
	return &m, nil
}

// Mismatch is a manifest entry whose file no longer matches.
type Mismatch struct {
	Name   string
	Want   string
	Got    string // empty when the file could not be read
	Reason string
}

// VerifyManifest rehashes every file listed in the manifest found in dir.
func VerifyManifest(dir string) ([]Mismatch, error) {
	m, err := ReadManifest(filepath.Join(dir, ManifestName))
	if err != nil {
		return nil, err
	}
	var out []Mismatch
	for _, mf := range m.Files {
		got, size, err := digestFile(filepath.Join(dir, filepath.FromSlash(mf.Name)))
		switch {
		case err != nil:
			out = append(out, Mismatch{Name: mf.Name, Want: mf.Digest, Reason: err.Error()})
		case got != mf.Digest:
			out = append(out, Mismatch{Name: mf.Name, Want: mf.Digest, Got: got, Reason: "digest differs"})
		case size != mf.Bytes:
			out = append(out, Mismatch{Name: mf.Name, Want: mf.Digest, Got: got, Reason: fmt.Sprintf("size %d, want %d", size, mf.Bytes)})
		}
	}
	return out, nil
}

func digestFile(path string) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()
	h := xxh3.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return "", n, err
	}
	return hexSum(h), n, nil
}

func hexSum(h *xxh3.Hasher) string {
	return fmt.Sprintf("%016x", h.Sum64())
}
