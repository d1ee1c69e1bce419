// Package yum parses RPMMD repository metadata: repomd.xml's list of
// data sections (primary, filelists, other, patterns) and the
// compressed XML each section's location points at. The struct shapes
// mirror the repomd.xml schema directly rather than introducing an
// intermediate representation, the same choice the retrieved nikos
// repomd types make.
package yum

import (
	"context"
	"encoding/xml"
	"io"
	"path"
	"strings"

	"github.com/mholt/archives"

	"github.com/repocore/reposync/pkg/errors"
)

// Repomd is the root element of repomd.xml.
type Repomd struct {
	XMLName  xml.Name     `xml:"repomd"`
	Revision string       `xml:"revision"`
	Data     []RepomdData `xml:"data"`
}

// RepomdData is one <data type="..."> section.
type RepomdData struct {
	Type         string   `xml:"type,attr"`
	Checksum     Checksum `xml:"checksum"`
	OpenChecksum Checksum `xml:"open-checksum"`
	Location     Location `xml:"location"`
	Timestamp    float64  `xml:"timestamp"`
	Size         int64    `xml:"size"`
	OpenSize     int64    `xml:"open-size"`
}

// Checksum is a <checksum type="sha256">hex</checksum> element.
type Checksum struct {
	Type  string `xml:"type,attr"`
	Value string `xml:",chardata"`
}

// Location is a <location href="..."/> element, relative to the
// repository base URL.
type Location struct {
	Href string `xml:"href,attr"`
}

// ParseRepomd decodes repomd.xml from r.
func ParseRepomd(r io.Reader) (*Repomd, error) {
	var rm Repomd
	if err := xml.NewDecoder(r).Decode(&rm); err != nil {
		return nil, errors.Wrap(errors.KindCacheCorrupted, "yum.ParseRepomd", err)
	}
	return &rm, nil
}

// ByType returns the <data> section of the given type ("primary",
// "filelists", "other", "patterns", ...), or nil if absent.
func (rm *Repomd) ByType(typ string) *RepomdData {
	for i := range rm.Data {
		if rm.Data[i].Type == typ {
			return &rm.Data[i]
		}
	}
	return nil
}

// decompressors maps the extensions repomd.xml actually publishes to
// the archives.Decompressor that handles them, so adding a new
// compressed format repodata ships in only touches this table.
var decompressors = map[string]archives.Decompressor{
	".gz":  archives.Gz{},
	".xz":  archives.Xz{},
	".zst": archives.Zstd{},
}

// Decompress wraps r with the decompressor matching href's extension
// (.gz, .xz, .zst), or returns r unchanged for a plain .xml href.
// Every supported format is handled through github.com/mholt/archives
// rather than one decompression package per extension.
func Decompress(href string, r io.Reader) (io.Reader, error) {
	d, ok := decompressors[strings.ToLower(path.Ext(href))]
	if !ok {
		return r, nil
	}
	rc, err := d.OpenReader(r)
	if err != nil {
		return nil, errors.Wrap(errors.KindCacheCorrupted, "yum.Decompress", err)
	}
	return rc, nil
}

// DecompressFile is like Decompress but identifies the format from the
// file's own magic bytes via archives.Identify, used when a fetched
// repodata entry's extension is missing or unreliable.
func DecompressFile(ctx context.Context, filename string, r io.Reader) (io.Reader, error) {
	format, stream, err := archives.Identify(ctx, filename, r)
	if err != nil {
		if err == archives.NoMatch {
			return stream, nil
		}
		return nil, errors.Wrap(errors.KindCacheCorrupted, "yum.DecompressFile", err)
	}
	d, ok := format.(archives.Decompressor)
	if !ok {
		return stream, nil
	}
	rc, err := d.OpenReader(stream)
	if err != nil {
		return nil, errors.Wrap(errors.KindCacheCorrupted, "yum.DecompressFile", err)
	}
	return rc, nil
}

// Primary is the decoded <metadata> root of a primary.xml(.gz) file:
// one <package> entry per RPM the repository advertises.
type Primary struct {
	XMLName  xml.Name  `xml:"metadata"`
	Packages []Package `xml:"package"`
}

// Package is one <package type="rpm"> entry in primary.xml.
type Package struct {
	Type     string       `xml:"type,attr"`
	Name     string       `xml:"name"`
	Arch     string       `xml:"arch"`
	Version  PackageVer   `xml:"version"`
	Checksum Checksum     `xml:"checksum"`
	Summary  string       `xml:"summary"`
	Location Location     `xml:"location"`
	Format   PackageFormat `xml:"format"`
}

// PackageVer is a <version epoch="" ver="" rel=""/> element.
type PackageVer struct {
	Epoch string `xml:"epoch,attr"`
	Ver   string `xml:"ver,attr"`
	Rel   string `xml:"rel,attr"`
}

// PackageFormat holds the <format> block's provides/requires entries
// needed by the solver pool; only the pieces reposync itself consumes
// are modeled, everything else in the schema is left unparsed.
type PackageFormat struct {
	License  string          `xml:"http://linux.duke.edu/metadata/rpm license"`
	Provides []PackageEntry  `xml:"http://linux.duke.edu/metadata/rpm provides>entry"`
	Requires []PackageEntry  `xml:"http://linux.duke.edu/metadata/rpm requires>entry"`
}

// PackageEntry is one <rpm:entry name="..." .../> dependency reference.
type PackageEntry struct {
	Name    string `xml:"name,attr"`
	Flags   string `xml:"flags,attr"`
	Epoch   string `xml:"epoch,attr"`
	Version string `xml:"ver,attr"`
	Release string `xml:"rel,attr"`
}

// ParsePrimary decodes a primary.xml document from r.
func ParsePrimary(r io.Reader) (*Primary, error) {
	var p Primary
	if err := xml.NewDecoder(r).Decode(&p); err != nil {
		return nil, errors.Wrap(errors.KindCacheCorrupted, "yum.ParsePrimary", err)
	}
	return &p, nil
}
