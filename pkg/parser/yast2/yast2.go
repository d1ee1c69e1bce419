// Package yast2 parses the older YaST2 repository format: a top-level
// "content" descriptor followed by one or more "packages" descriptors,
// both line-oriented "KEY value" text files rather than XML.
package yast2

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/repocore/reposync/pkg/errors"
)

// Content is the decoded "content" file: repository identity plus the
// list of "packages" descriptor files it references (DESCRDIR entries).
type Content struct {
	Fields    map[string]string
	DescrDirs []string
	LabelLang map[string]string
}

// ParseContent decodes a YaST2 content file from r. Each line is
// "KEY value...", with multi-valued keys (DESCRDIR) accumulating.
func ParseContent(r io.Reader) (*Content, error) {
	c := &Content{Fields: map[string]string{}, LabelLang: map[string]string{}}
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, " ", 2)
		key := parts[0]
		val := ""
		if len(parts) > 1 {
			val = strings.TrimSpace(parts[1])
		}
		switch key {
		case "DESCRDIR":
			c.DescrDirs = append(c.DescrDirs, val)
		case "LINGUAS":
			// space-separated language codes the catalog is translated into
			for _, lang := range strings.Fields(val) {
				c.LabelLang[lang] = ""
			}
		default:
			if strings.HasPrefix(key, "LABEL.") {
				lang := strings.TrimPrefix(key, "LABEL.")
				c.LabelLang[lang] = val
			} else {
				c.Fields[key] = val
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(errors.KindCacheCorrupted, "yast2.ParseContent", err)
	}
	return c, nil
}

// Packages is the decoded "packages"/"packages.DU" descriptor: one
// record per package, separated by "=Pkg:" header lines.
type Packages struct {
	Entries []PackageEntry
}

// PackageEntry is one package record from a packages descriptor.
type PackageEntry struct {
	Name     string
	Version  string
	Release  string
	Arch     string
	Size     int64
	Location string
}

// ParsePackages decodes a YaST2 packages descriptor from r.
func ParsePackages(r io.Reader) (*Packages, error) {
	p := &Packages{}
	scanner := bufio.NewScanner(r)
	var cur *PackageEntry

	flush := func() {
		if cur != nil {
			p.Entries = append(p.Entries, *cur)
		}
	}

	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "=Pkg:"):
			flush()
			fields := strings.Fields(strings.TrimPrefix(line, "=Pkg:"))
			cur = &PackageEntry{}
			if len(fields) > 0 {
				cur.Name = fields[0]
			}
			if len(fields) > 1 {
				cur.Version = fields[1]
			}
			if len(fields) > 2 {
				cur.Release = fields[2]
			}
			if len(fields) > 3 {
				cur.Arch = fields[3]
			}
		case strings.HasPrefix(line, "+Loc:") && cur != nil:
			// location block is terminated by a line starting with "-Loc:"
			if scanner.Scan() {
				cur.Location = strings.TrimSpace(scanner.Text())
			}
		case strings.HasPrefix(line, "=Siz:") && cur != nil:
			fields := strings.Fields(strings.TrimPrefix(line, "=Siz:"))
			if len(fields) > 0 {
				if n, err := strconv.ParseInt(fields[0], 10, 64); err == nil {
					cur.Size = n
				}
			}
		}
	}
	flush()

	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(errors.KindCacheCorrupted, "yast2.ParsePackages", err)
	}
	return p, nil
}
