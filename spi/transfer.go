package spi

import "iter"

// Write sends every word in order. On a half-duplex bus the line is turned
// to output once and nothing is received. On a full-duplex bus each word's
// echo is read and discarded so RXNE never overruns.
func (b *Bus[W, L]) Write(words []W) error {
	if isHalfDuplex[L]() {
		b.bidiOutput()
		for i, w := range words {
			if err := b.send(w); err != nil {
				return b.aborted("write", i, err)
			}
		}
		return nil
	}
	for i, w := range words {
		if err := b.send(w); err != nil {
			return b.aborted("write", i, err)
		}
		if _, err := b.receive(); err != nil {
			return b.aborted("write", i, err)
		}
	}
	return nil
}

// WriteSeq is Write for words produced by an iterator. The sequence is
// consumed lazily, one word per frame.
func (b *Bus[W, L]) WriteSeq(words iter.Seq[W]) error {
	half := isHalfDuplex[L]()
	if half {
		b.bidiOutput()
	}
	i := 0
	for w := range words {
		if err := b.send(w); err != nil {
			return b.aborted("write", i, err)
		}
		if !half {
			if _, err := b.receive(); err != nil {
				return b.aborted("write", i, err)
			}
		}
		i++
	}
	return nil
}

// Read fills words from the bus. On a half-duplex bus the line is turned to
// input once. On a full-duplex bus a zero word is sent for every word read to
// generate the clock.
func (b *Bus[W, L]) Read(words []W) error {
	if isHalfDuplex[L]() {
		b.bidiInput()
		for i := range words {
			w, err := b.receive()
			if err != nil {
				return b.aborted("read", i, err)
			}
			words[i] = w
		}
		return nil
	}
	for i := range words {
		if err := b.send(0); err != nil {
			return b.aborted("read", i, err)
		}
		w, err := b.receive()
		if err != nil {
			return b.aborted("read", i, err)
		}
		words[i] = w
	}
	return nil
}

// TransferInPlace sends each word of words and replaces it with the word
// received in the same frame.
func TransferInPlace[W Word](b *Bus[W, FullDuplex], words []W) error {
	for i, w := range words {
		if err := b.send(w); err != nil {
			return b.aborted("transfer", i, err)
		}
		r, err := b.receive()
		if err != nil {
			return b.aborted("transfer", i, err)
		}
		words[i] = r
	}
	return nil
}

// Transfer sends write and stores the words received alongside into read.
// The slices must have the same length; a mismatch panics before the bus is
// touched.
func Transfer[W Word](b *Bus[W, FullDuplex], read, write []W) error {
	if len(read) != len(write) {
		panic("spi: transfer buffers differ in length")
	}
	for i, w := range write {
		if err := b.send(w); err != nil {
			return b.aborted("transfer", i, err)
		}
		r, err := b.receive()
		if err != nil {
			return b.aborted("transfer", i, err)
		}
		read[i] = r
	}
	return nil
}
