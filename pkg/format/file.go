package format

import (
	"github.com/ajitpratap0/parquetflow/pkg/columnar"
	"github.com/ajitpratap0/parquetflow/pkg/mmap"
)

// File is a finished file opened for verification. The file is memory
// mapped and chunks are decoded straight from the mapping.
type File struct {
	r        *mmap.Reader
	Metadata *FileMetadata
}

// Open maps the file at path and verifies its footer.
func Open(path string) (*File, error) {
	r, err := mmap.Open(path)
	if err != nil {
		return nil, err
	}
	m, err := readMetadata(r, r.Size())
	if err != nil {
		_ = r.Close()
		return nil, err
	}
	return &File{r: r, Metadata: m}, nil
}

// ColumnChunk decodes one column chunk. The returned input does not alias
// the mapping and stays valid after Close.
func (f *File) ColumnChunk(rowGroup, column int) (columnar.ColumnInput, error) {
	ch, err := chunkMeta(f.Metadata, rowGroup, column)
	if err != nil {
		return columnar.ColumnInput{}, err
	}
	data, err := f.r.Slice(ch.Offset, ch.CompressedSize)
	if err != nil {
		return columnar.ColumnInput{}, err
	}
	return decodeChunk(f.Metadata, column, ch, data)
}

// Verify decodes every chunk of every row group.
func (f *File) Verify() error {
	f.r.WillNeed(0, f.r.Size())
	for rg := range f.Metadata.RowGroups {
		for col := range f.Metadata.Columns {
			if _, err := f.ColumnChunk(rg, col); err != nil {
				return err
			}
		}
	}
	return nil
}

// Close unmaps the file.
func (f *File) Close() error {
	return f.r.Close()
}
