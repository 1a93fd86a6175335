package romimage

import "math"

// Insert finds the best-fitting free buddy block for newrom (the smallest
// free, correctly-aligned power-of-two block that's still large enough)
// and splices newrom into the list at that offset. Reports false if no
// free block large enough exists.
func (img *Image) Insert(newrom *Rom) bool {
	type bestFit struct {
		size   uint32
		prev   *Rom
		offset uint32
		found  bool
	}

	// A sentinel "ROM" at the end of the page lets the scan below treat the
	// trailing free space the same as a gap between two real ROMs.
	sentinel := &Rom{Offset: img.PageSize}
	img.InsertTail(sentinel)
	defer img.Remove(sentinel)

	var offset uint32
	var prev *Rom
	var best bestFit
	best.size = math.MaxUint32

	// The sentinel's Size is 0, so its own span contributes nothing; it
	// only serves to make the gap before it (the page's trailing free
	// space) visible to the scan below, exactly like every other gap.
	for rom := img.Head(); rom != nil; rom = img.Next(rom) {
		cur := rom.Offset
		next := cur + rom.Size

		for cur > offset {
			var biggest uint32
			for biggest = img.PageSize; biggest >= MinSize; biggest /= 2 {
				if offset%biggest == 0 && cur-offset >= biggest {
					if biggest >= newrom.Size && best.size > biggest {
						best.size = biggest
						best.offset = offset
						best.prev = prev
						best.found = true
					}
					break
				}
			}
			offset += biggest
		}
		prev = rom
		offset = next
	}

	if !best.found {
		return false
	}

	newrom.Offset = best.offset
	if best.prev != nil {
		img.InsertAfter(best.prev, newrom)
	} else {
		img.InsertHead(newrom)
	}
	return true
}

// InsertDefrag inserts newrom, defragmenting the image first if a direct
// insertion doesn't find a large-enough block.
func (img *Image) InsertDefrag(newrom *Rom) bool {
	if img.Insert(newrom) {
		return true
	}
	img.Defrag(newrom.Size)
	return img.Insert(newrom)
}

// Defrag performs one step of incremental defragmentation targeting a free
// block of the given size: it places two dummy half-size placeholders
// (recursing if needed), then slides every ROM between their buddy
// positions so the two halves become contiguous. Reports false if no more
// defragmentation is possible (size already at MinSize, or the page has no
// room for the two halves).
func (img *Image) Defrag(size uint32) bool {
	if size == MinSize {
		return false
	}

	first := &Rom{Size: size / 2}
	second := &Rom{Size: size / 2}

	if !img.InsertDefrag(first) {
		return false
	}
	if !img.InsertDefrag(second) {
		img.Remove(first)
		return false
	}

	if second.Offset < first.Offset {
		first, second = second, first
	}

	insertAfter := img.Prev(first)
	firstOffset := first.Offset
	img.Remove(first)

	prevOfSecond := img.Prev(second)
	nextOfSecond := img.Next(second)
	secondOffset := second.Offset
	img.Remove(second)

	half := size / 2
	moveRom := func(dest *Rom, destOffset, buddySize uint32, src *Rom) {
		img.Remove(src)
		src.Offset = destOffset + src.Offset%buddySize
		if dest != nil {
			img.InsertAfter(dest, src)
		} else {
			img.InsertHead(src)
		}
	}

	if secondOffset&half == 0 {
		buddyOffset := secondOffset + half
		move := nextOfSecond
		for move != nil && move.Offset < buddyOffset+half {
			nextMove := img.Next(move)
			moveRom(insertAfter, firstOffset, half, move)
			insertAfter = move
			move = nextMove
		}
	} else {
		buddyOffset := secondOffset - half
		move := prevOfSecond
		for move != nil && move.Offset >= buddyOffset {
			prevMove := img.Prev(move)
			moveRom(insertAfter, firstOffset, half, move)
			move = prevMove
		}
	}
	return true
}
