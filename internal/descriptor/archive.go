package descriptor

import (
	"archive/tar"
	"fmt"
	"time"
)

// Writes every overlay file into tw.
//
// The archive name of each entry is chosen by name, so callers can lay the
// files out as a build context or as an image layer. Entries carry the
// file's permission bits, root ownership and modTime.
func (d *Descriptor) WriteFiles(tw *tar.Writer, name func(File) string, modTime time.Time) error {
	for _, f := range d.Files {
		data, err := d.Overlay(f)
		if err != nil {
			return fmt.Errorf("overlay %s: %w", f.Source, err)
		}

		header := &tar.Header{
			Typeflag: tar.TypeReg,
			Name:     name(f),
			Mode:     int64(f.Perm()),
			Size:     int64(len(data)),
			ModTime:  modTime,
			Format:   tar.FormatPAX,
		}

		if err := tw.WriteHeader(header); err != nil {
			return err
		}
		if _, err := tw.Write(data); err != nil {
			return err
		}
	}
	return nil
}
