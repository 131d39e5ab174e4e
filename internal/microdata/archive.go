package microdata

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/JoacoLucen/EPH-Insight-App/platform/apperr"
)

const (
	individualsMarker = "usu_individual"
	householdsMarker  = "usu_hogar"
	memberSuffix      = ".txt"
)

// KindOf classifies an archive member by name. Only .txt members whose name
// contains usu_individual or usu_hogar are survey tables.
func KindOf(name string) (Kind, bool) {
	base := strings.ToLower(path.Base(strings.ReplaceAll(name, "\\", "/")))
	if !strings.HasSuffix(base, memberSuffix) {
		return "", false
	}
	switch {
	case strings.Contains(base, individualsMarker):
		return KindIndividuals, true
	case strings.Contains(base, householdsMarker):
		return KindHouseholds, true
	default:
		return "", false
	}
}

// ReadArchive parses every survey table inside a zipped extract.
// An archive without any survey table is malformed.
func ReadArchive(data []byte, name string) (*Dataset, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, apperr.Malformed(name, 0, err)
	}

	ds := NewDataset()
	found := 0
	for _, member := range zr.File {
		if member.FileInfo().IsDir() {
			continue
		}
		kind, ok := KindOf(member.Name)
		if !ok {
			continue
		}
		found++
		label := name + ":" + member.Name
		if err := readMember(ds, member, kind, label); err != nil {
			return nil, err
		}
	}
	if found == 0 {
		return nil, apperr.Malformed(name, 0, fmt.Errorf("no %s or %s table in archive", individualsMarker, householdsMarker))
	}
	return ds, nil
}

func readMember(ds *Dataset, member *zip.File, kind Kind, label string) error {
	rc, err := member.Open()
	if err != nil {
		return apperr.Malformed(label, 0, err)
	}
	defer rc.Close()
	return ds.ReadTable(rc, kind, label)
}

// ReadTable parses one table into the dataset.
func (d *Dataset) ReadTable(r io.Reader, kind Kind, label string) error {
	switch kind {
	case KindIndividuals:
		rows, excluded, err := ReadIndividuals(r, label)
		if err != nil {
			return err
		}
		d.Individuals = append(d.Individuals, rows...)
		d.Report.addFile(label, kind, len(rows), excluded)
	case KindHouseholds:
		rows, excluded, err := ReadHouseholds(r, label)
		if err != nil {
			return err
		}
		d.Households = append(d.Households, rows...)
		d.Report.addFile(label, kind, len(rows), excluded)
	default:
		return fmt.Errorf("unknown table kind %q", kind)
	}
	return nil
}
