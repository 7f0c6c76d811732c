package filesystem

import (
	"encoding/binary"
	"fmt"
	"unicode/utf16"
)

// MBR is a classic Master Boot Record, sector 0 of a partitioned disk.
type MBR struct {
	BootCode       [440]byte
	DiskSignature  uint32
	Reserved       uint16
	PartitionTable [4]MBRPartitionEntry
	BootSignature  uint16
}

// MBRPartitionEntry is one of an MBR's four fixed partition slots.
type MBRPartitionEntry struct {
	BootFlag      uint8
	StartCHS      [3]byte
	PartitionType uint8
	EndCHS        [3]byte
	StartLBA      uint32
	PartitionSize uint32
}

// Valid reports whether the entry describes a real partition.
func (e MBRPartitionEntry) Valid() bool { return e.PartitionType != 0 }

// Bootable reports whether the partition's boot flag is set.
func (e MBRPartitionEntry) Bootable() bool { return e.BootFlag == 0x80 }

// IsGPTProtective reports whether this entry is the 0xEE protective
// partition that signals the real partition table is a GPT, not MBR.
func (e MBRPartitionEntry) IsGPTProtective() bool { return e.PartitionType == 0xee }

// ParseMBR reads and decodes the 512-byte MBR at the start of reader's
// media. Takes a filesystem.Reader (satisfied directly by *ewf.Handle),
// so it works against any acquisition this library can open.
func ParseMBR(reader Reader) (*MBR, error) {
	raw, err := reader.ReadBytes(0, 512)
	if err != nil {
		return nil, fmt.Errorf("filesystem: reading MBR sector: %w", err)
	}
	if len(raw) < 512 {
		return nil, fmt.Errorf("filesystem: short read of MBR sector (%d bytes)", len(raw))
	}

	var mbr MBR
	copy(mbr.BootCode[:], raw[0:440])
	mbr.DiskSignature = binary.LittleEndian.Uint32(raw[440:444])
	mbr.Reserved = binary.LittleEndian.Uint16(raw[444:446])
	for i := 0; i < 4; i++ {
		entry := raw[446+i*16 : 446+(i+1)*16]
		mbr.PartitionTable[i] = MBRPartitionEntry{
			BootFlag:      entry[0],
			StartCHS:      [3]byte{entry[1], entry[2], entry[3]},
			PartitionType: entry[4],
			EndCHS:        [3]byte{entry[5], entry[6], entry[7]},
			StartLBA:      binary.LittleEndian.Uint32(entry[8:12]),
			PartitionSize: binary.LittleEndian.Uint32(entry[12:16]),
		}
	}
	mbr.BootSignature = binary.LittleEndian.Uint16(raw[510:512])
	return &mbr, nil
}

// Valid reports whether the boot signature matches 0x55AA.
func (m MBR) Valid() bool { return m.BootSignature == 0x55aa }

// GPTHeader is the GUID Partition Table header at LBA 1.
type GPTHeader struct {
	Signature         [8]byte
	Revision          uint32
	HeaderSize        uint32
	HeaderCRC32       uint32
	CurrentLBA        uint64
	BackupLBA         uint64
	FirstUsableLBA    uint64
	LastUsableLBA     uint64
	DiskGUID          [16]byte
	PartitionEntryLBA uint64
	NumberOfEntries   uint32
	EntrySize         uint32
	EntriesCRC32      uint32
}

// GPTPartitionEntry is one partition-entry-array record.
type GPTPartitionEntry struct {
	TypeGUID      [16]byte
	PartitionGUID [16]byte
	StartLBA      uint64
	EndLBA        uint64
	Attributes    uint64
	Name          [72]byte
}

// NameString decodes the UTF-16LE partition name, trimmed at the first
// NUL code unit.
func (e GPTPartitionEntry) NameString() string {
	var units []uint16
	for i := 0; i+1 < len(e.Name); i += 2 {
		u := binary.LittleEndian.Uint16(e.Name[i : i+2])
		if u == 0 {
			break
		}
		units = append(units, u)
	}
	return string(utf16.Decode(units))
}

// Empty reports whether this entry slot is unused.
func (e GPTPartitionEntry) Empty() bool { return e.StartLBA == 0 && e.EndLBA == 0 }

// GPT is a parsed GUID Partition Table: its header plus non-empty
// partition entries.
type GPT struct {
	Header   GPTHeader
	Entries  []GPTPartitionEntry
}

// ParseGPT reads the GPT header at LBA 1 and its partition entry array
// at the header's PartitionEntryLBA, given the disk's sector size.
func ParseGPT(reader Reader) (*GPT, error) {
	sectorSize := uint64(reader.GetSectorSize())
	if sectorSize == 0 {
		sectorSize = 512
	}

	headerRaw, err := reader.ReadBytes(sectorSize, 92)
	if err != nil {
		return nil, fmt.Errorf("filesystem: reading GPT header: %w", err)
	}
	if len(headerRaw) < 92 {
		return nil, fmt.Errorf("filesystem: short read of GPT header (%d bytes)", len(headerRaw))
	}

	var h GPTHeader
	copy(h.Signature[:], headerRaw[0:8])
	h.Revision = binary.LittleEndian.Uint32(headerRaw[8:12])
	h.HeaderSize = binary.LittleEndian.Uint32(headerRaw[12:16])
	h.HeaderCRC32 = binary.LittleEndian.Uint32(headerRaw[16:20])
	h.CurrentLBA = binary.LittleEndian.Uint64(headerRaw[24:32])
	h.BackupLBA = binary.LittleEndian.Uint64(headerRaw[32:40])
	h.FirstUsableLBA = binary.LittleEndian.Uint64(headerRaw[40:48])
	h.LastUsableLBA = binary.LittleEndian.Uint64(headerRaw[48:56])
	copy(h.DiskGUID[:], headerRaw[56:72])
	h.PartitionEntryLBA = binary.LittleEndian.Uint64(headerRaw[72:80])
	h.NumberOfEntries = binary.LittleEndian.Uint32(headerRaw[80:84])
	h.EntrySize = binary.LittleEndian.Uint32(headerRaw[84:88])
	h.EntriesCRC32 = binary.LittleEndian.Uint32(headerRaw[88:92])

	if string(h.Signature[:]) != "EFI PART" {
		return nil, fmt.Errorf("filesystem: not a GPT disk (signature %q)", h.Signature)
	}

	entriesRaw, err := reader.ReadBytes(h.PartitionEntryLBA*sectorSize, uint64(h.NumberOfEntries)*uint64(h.EntrySize))
	if err != nil {
		return nil, fmt.Errorf("filesystem: reading GPT partition entries: %w", err)
	}

	gpt := &GPT{Header: h}
	for i := uint32(0); i < h.NumberOfEntries; i++ {
		start := uint64(i) * uint64(h.EntrySize)
		if start+128 > uint64(len(entriesRaw)) {
			break
		}
		raw := entriesRaw[start : start+128]
		var e GPTPartitionEntry
		copy(e.TypeGUID[:], raw[0:16])
		copy(e.PartitionGUID[:], raw[16:32])
		e.StartLBA = binary.LittleEndian.Uint64(raw[32:40])
		e.EndLBA = binary.LittleEndian.Uint64(raw[40:48])
		e.Attributes = binary.LittleEndian.Uint64(raw[48:56])
		copy(e.Name[:], raw[56:128])
		if !e.Empty() {
			gpt.Entries = append(gpt.Entries, e)
		}
	}
	return gpt, nil
}

// DetectPartitionScheme reports which partition scheme, if any, is
// present at the start of reader's media: an MBR with any entry of
// the 0xEE protective type signals GPT; any other valid MBR signature
// signals MBR; anything else is unpartitioned/unknown.
func DetectPartitionScheme(reader Reader) (string, error) {
	mbr, err := ParseMBR(reader)
	if err != nil {
		return "", err
	}
	if !mbr.Valid() {
		return "unknown", nil
	}
	for _, entry := range mbr.PartitionTable {
		if entry.IsGPTProtective() {
			return "gpt", nil
		}
	}
	return "mbr", nil
}
