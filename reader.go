package ewf

// ReadSector reads one sector's worth of media bytes, satisfying
// filesystem.Reader so a Handle can be handed straight to
// filesystem.CreateFileSystem without an adapter type.
func (h *Handle) ReadSector(sectorNumber uint64) ([]byte, error) {
	return h.ReadSectors(sectorNumber, 1)
}

// ReadSectors reads count consecutive sectors starting at startSector.
func (h *Handle) ReadSectors(startSector, count uint64) ([]byte, error) {
	h.mu.Lock()
	sectorSize := int64(h.geo.BytesPerSector)
	h.mu.Unlock()
	if sectorSize == 0 {
		return nil, newErr(ErrInvalidState, "bytes_per_sector is zero")
	}
	return h.ReadBytes(startSector*uint64(sectorSize), count*uint64(sectorSize))
}

// ReadBytes reads size bytes at the given media-relative byte offset.
func (h *Handle) ReadBytes(offset uint64, size uint64) ([]byte, error) {
	buf := make([]byte, size)
	n, err := h.ReadBufferAt(buf, int64(offset))
	if err != nil {
		return nil, err
	}
	return buf[:n], nil
}

// GetSectorSize returns bytes_per_sector (filesystem.Reader).
func (h *Handle) GetSectorSize() uint32 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.geo.BytesPerSector
}

// GetSectorCount returns number_of_sectors (filesystem.Reader).
func (h *Handle) GetSectorCount() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.geo.NumberOfSectors
}
