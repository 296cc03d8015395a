package report

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Fastpacer/Dance-Movement-Analysis/internal/domain/port"
)

// Archiver writes report bundles as zip files.
type Archiver struct{}

func NewArchiver() *Archiver {
	return &Archiver{}
}

// CreateZip writes the entries to outputPath in order. The archive is removed
// again if any entry cannot be added.
func (z *Archiver) CreateZip(ctx context.Context, entries []port.BundleEntry, outputPath string) (err error) {
	f, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("create bundle: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close bundle: %w", cerr)
		}
		if err != nil {
			os.Remove(outputPath)
		}
	}()

	zw := zip.NewWriter(f)
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := writeEntry(zw, e); err != nil {
			return fmt.Errorf("bundle %s: %w", e.Name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("finalize bundle: %w", err)
	}
	return nil
}

// compressed formats are stored as is; deflating them again only costs time.
var storedExtensions = map[string]bool{".mp4": true, ".png": true, ".zip": true}

func entryMethod(name string) uint16 {
	if storedExtensions[strings.ToLower(filepath.Ext(name))] {
		return zip.Store
	}
	return zip.Deflate
}

func writeEntry(zw *zip.Writer, e port.BundleEntry) error {
	name := e.Name
	if name == "" {
		name = filepath.Base(e.Path)
	}
	hdr := &zip.FileHeader{Name: name, Method: entryMethod(name), Modified: time.Now()}

	if e.Path == "" {
		w, err := zw.CreateHeader(hdr)
		if err != nil {
			return err
		}
		_, err = w.Write(e.Data)
		return err
	}

	src, err := os.Open(e.Path)
	if err != nil {
		return err
	}
	defer src.Close()

	if st, err := src.Stat(); err == nil {
		hdr.Modified = st.ModTime()
	}
	w, err := zw.CreateHeader(hdr)
	if err != nil {
		return err
	}
	_, err = io.Copy(w, src)
	return err
}
