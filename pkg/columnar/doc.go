// Package columnar turns caller-supplied column buffers into encoded column
// chunks. It is shared by the batch file writer and by the streaming sink,
// which stages decoded records through a Builder before handing them here.
//
// # Slots and levels
//
// A chunk stores one value slot per logical position:
//
//   - REQUIRED columns have one slot per row and no levels.
//   - OPTIONAL columns have one slot per row and a definition level per
//     slot (1 present, 0 null). A null slot still occupies its fixed width,
//     or an empty offsets range for BYTE_ARRAY.
//   - REPEATED columns have one slot per list element. Repetition level 0
//     starts a new row and 1 continues the current list. An empty list is a
//     single slot with definition level 0.
//
// # Encoding
//
// Encode packs, in order: the values stream, the definition levels (one byte
// per slot), the repetition levels (one byte per slot), and then applies the
// file codec to the whole concatenation. Numeric and boolean values are raw
// little-endian; BYTE_ARRAY and FIXED_BYTE_ARRAY values are each prefixed by
// a u32 little-endian length. Decode reverses this exactly.
//
// # Usage Example
//
//	buf := columnar.NewChunkBuffer(schema.ColumnDef{
//		Name: "name", PhysicalType: schema.ByteArray, Repetition: schema.Optional,
//	})
//	err := buf.Append(2, columnar.NullableByteArrays([]byte("a"), nil))
//	chunk, err := buf.Encode(comp)
//	fmt.Println(chunk.Stats.NullCount) // 1
package columnar
