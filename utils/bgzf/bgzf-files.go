// elPrep: a high-performance tool for analyzing SAM/BAM files.
// Copyright (c) 2017-2020 imec vzw.

// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version, and Additional Terms
// (see below).

// This program is distributed in the hope that it will be useful, but
// WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Affero General Public License for more details.

// You should have received a copy of the GNU Affero General Public
// License and Additional Terms along with this program. If not, see
// <https://github.com/ExaScience/elprep/blob/master/LICENSE.txt>.

// Package bgzf reads and writes BGZF files, the blocked gzip format
// underlying BAM. Block inflation and deflation run on a bounded pool
// of pipeline workers, while the byte streams exposed by Reader and
// Writer stay strictly ordered.
package bgzf

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"sync"

	"github.com/exascience/pargo/pipeline"
)

// IsGzip determines if the the given byte scanner produces
// a gzip file. It uses ReadByte and UnreadByte to check
// only the initial byte from the input.
func IsGzip(scanner io.ByteScanner) (bool, error) {
	b, err := scanner.ReadByte()
	if err != nil {
		return false, err
	}
	if err := scanner.UnreadByte(); err != nil {
		return false, err
	}
	return b == 0x1f, nil
}

const (
	// maxBlockSize is the maximum size of a compressed BGZF block.
	maxBlockSize = 65536

	// maxDataSize is the maximum amount of uncompressed data per
	// block, leaving room for deflate overhead on incompressible data.
	maxDataSize = 0xff00
)

var eofMarker = []byte{
	0x1f, 0x8b, 0x08, 0x04, 0x00, 0x00,
	0x00, 0x00, 0x00, 0xff, 0x06, 0x00,
	0x42, 0x43, 0x02, 0x00, 0x1b, 0x00,
	0x03, 0x00, 0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00,
}

var errMissingEOF = errors.New("invalid BGZF file: does not end in proper EOF marker")

type (
	// block is one block of data in a BGZF file, either compressed or
	// uncompressed.
	block struct {
		Data  []byte
		Crc32 uint32
		Size  uint32
	}

	// Reader reads in parallel from a BGZF file.
	Reader struct {
		err     error
		r       io.Reader
		gz      *gzip.Reader
		p       pipeline.Pipeline
		w       sync.WaitGroup
		done    chan struct{}
		channel chan *block
		ctx     context.Context
		cancel  func()
		data    interface{}
		index   int
		block   *block
	}

	internalReader Reader
)

var blockPool = sync.Pool{New: func() interface{} {
	return &block{Data: make([]byte, 0, maxBlockSize)}
}}

func (bgzf *internalReader) readBlock() (b *block, err error) {
	var slen int
	for i := 0; i+4 <= len(bgzf.gz.Extra); i += 4 + slen {
		slen = int(binary.LittleEndian.Uint16(bgzf.gz.Extra[i+2 : i+4]))
		if bgzf.gz.Extra[i] == 'B' && bgzf.gz.Extra[i+1] == 'C' && slen == 2 && i+6 <= len(bgzf.gz.Extra) {
			bsize := int(binary.LittleEndian.Uint16(bgzf.gz.Extra[i+4 : i+6]))
			dataSize := bsize - len(bgzf.gz.Extra) - 19
			if dataSize < 0 {
				return nil, fmt.Errorf("invalid BGZF block size %v", bsize+1)
			}
			b = blockPool.Get().(*block)
			b.Data = b.Data[:dataSize]
			if _, err = io.ReadFull(bgzf.r, b.Data); err != nil {
				if err == io.EOF {
					err = io.ErrUnexpectedEOF
				}
				return
			}
			var tail [8]byte
			if _, err = io.ReadFull(bgzf.r, tail[:]); err != nil {
				if err == io.EOF {
					err = io.ErrUnexpectedEOF
				}
				return
			}
			b.Crc32 = binary.LittleEndian.Uint32(tail[0:4])
			b.Size = binary.LittleEndian.Uint32(tail[4:8])
			if b.Size > maxBlockSize {
				return nil, fmt.Errorf("invalid uncompressed BGZF block size %v", b.Size)
			}
			err = bgzf.gz.Reset(bgzf.r)
			if err == io.EOF {
				if len(b.Data) != 2 || b.Data[0] != 3 || b.Data[1] != 0 || b.Crc32 != 0 || b.Size != 0 {
					err = errMissingEOF
				}
			} else if err != nil {
				err = fmt.Errorf("%v, while reading a BGZF block header", err)
			}
			return
		}
	}
	return nil, errors.New("missing BC extra subfield in BGZF header")
}

// Err implements the corresponding method of pipeline.Source
func (bgzf *internalReader) Err() error {
	if bgzf.err != io.EOF {
		return bgzf.err
	}
	return nil
}

// Prepare implements the corresponding method of pipeline.Source
func (bgzf *internalReader) Prepare(_ context.Context) (size int) {
	return -1
}

// Fetch implements the corresponding method of pipeline.Source
func (bgzf *internalReader) Fetch(size int) (fetched int) {
	if bgzf.err != nil {
		return 0
	}
	b, err := bgzf.readBlock()
	if err != nil {
		bgzf.err = err
		bgzf.data = nil
		if b != nil && err != io.EOF {
			blockPool.Put(b)
		}
		return 0
	}
	bgzf.data = b
	return 1
}

// Data implements the corresponding method of pipeline.Source
func (bgzf *internalReader) Data() interface{} {
	return bgzf.data
}

var flateReaderPool sync.Pool

func (bgzf *Reader) inflate(_ int, data interface{}) interface{} {
	compressed := data.(*block)
	blockReader := bytes.NewReader(compressed.Data)
	var flateReader io.ReadCloser
	if pooled := flateReaderPool.Get(); pooled == nil {
		flateReader = flate.NewReader(blockReader)
	} else {
		flateReader = pooled.(io.ReadCloser)
		if err := flateReader.(flate.Resetter).Reset(blockReader, nil); err != nil {
			flateReader = flate.NewReader(blockReader)
		}
	}
	uncompressed := blockPool.Get().(*block)
	uncompressed.Data = uncompressed.Data[:int(compressed.Size)]
	if _, err := io.ReadFull(flateReader, uncompressed.Data); err == io.EOF {
		bgzf.p.SetErr(io.ErrUnexpectedEOF)
	} else if err != nil {
		bgzf.p.SetErr(err)
	} else if crc32.ChecksumIEEE(uncompressed.Data) != compressed.Crc32 {
		bgzf.p.SetErr(errors.New("invalid CRC-32 value for a data block in a BGZF file"))
	}
	if err := flateReader.Close(); err != nil {
		bgzf.p.SetErr(err)
	}
	flateReaderPool.Put(flateReader)
	blockPool.Put(compressed)
	return uncompressed
}

// NewReader returns a Reader for the given flate.Reader. Blocks are
// inflated by at most threads concurrent workers; threads <= 0 means
// runtime.GOMAXPROCS(0).
func NewReader(r flate.Reader, threads int) (*Reader, error) {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("%v, while opening a BGZF file", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	bgzf := &Reader{
		r:       r,
		gz:      gz,
		done:    make(chan struct{}),
		channel: make(chan *block, 1),
		ctx:     ctx,
		cancel:  cancel,
	}
	bgzf.p.Source((*internalReader)(bgzf))
	bgzf.p.Add(
		pipeline.LimitedPar(threads, pipeline.Receive(bgzf.inflate)),
		pipeline.StrictOrd(pipeline.ReceiveAndFinalize(func(_ int, data interface{}) interface{} {
			select {
			case <-bgzf.ctx.Done():
			case bgzf.channel <- data.(*block):
			}
			return nil
		}, func() {
			close(bgzf.channel)
		})),
	)
	bgzf.w.Add(1)
	go func() {
		defer bgzf.w.Done()
		defer close(bgzf.done)
		bgzf.p.Run()
	}()
	return bgzf, nil
}

// Close implements the corresponding method of io.Closer
func (bgzf *Reader) Close() error {
	bgzf.cancel()
	bgzf.w.Wait()
	if err := bgzf.gz.Close(); err != nil {
		return err
	}
	return bgzf.p.Err()
}

func (bgzf *Reader) fetchBlock() error {
	var (
		b  *block
		ok bool
	)
	select {
	case <-bgzf.ctx.Done():
		return bgzf.ctx.Err()
	case b, ok = <-bgzf.channel:
	case <-bgzf.done:
		select {
		case b, ok = <-bgzf.channel:
		default:
		}
	}
	if !ok {
		if err := bgzf.p.Err(); err != nil {
			return err
		}
		if bgzf.err != nil {
			return bgzf.err
		}
		return io.EOF
	}
	bgzf.index = 0
	bgzf.block = b
	return nil
}

// Read implements the corresponding method of io.Reader
func (bgzf *Reader) Read(p []byte) (n int, err error) {
	for bgzf.block == nil || bgzf.index == len(bgzf.block.Data) {
		if bgzf.block != nil {
			blockPool.Put(bgzf.block)
			bgzf.block = nil
		}
		if err = bgzf.fetchBlock(); err != nil {
			return
		}
	}
	n = copy(p, bgzf.block.Data[bgzf.index:])
	bgzf.index += n
	return
}

type (
	bytesBlock struct {
		bytes []byte
	}

	// Writer writes in parallel to a BGZF file.
	Writer struct {
		w         io.Writer
		level     int
		p         pipeline.Pipeline
		wait      sync.WaitGroup
		done      chan struct{}
		block     *bytesBlock
		channel   chan *bytesBlock
		data      interface{}
		flatePool sync.Pool
	}

	internalWriter Writer
)

func (*internalWriter) Err() error {
	return nil
}

func (writer *internalWriter) Prepare(_ context.Context) (size int) {
	return -1
}

func (writer *internalWriter) Fetch(size int) (fetched int) {
	if b, ok := <-writer.channel; ok {
		writer.data = b
		return 1
	}
	writer.data = nil
	return 0
}

func (writer *internalWriter) Data() interface{} {
	return writer.data
}

var bytesPool = sync.Pool{New: func() interface{} {
	return &bytesBlock{bytes: make([]byte, 0, maxBlockSize)}
}}

var blockHeader = []byte{
	0x1f, 0x8b, 0x08, 0x04, 0x00, 0x00,
	0x00, 0x00, 0x00, 0xff, 0x06, 0x00,
	0x42, 0x43, 0x02, 0x00, 0x00, 0x00,
}

func (bgzf *Writer) deflate(_ int, data interface{}) interface{} {
	b := data.(*bytesBlock)
	gzBytes := bytesPool.Get().(*bytesBlock)
	gzBuf := bytes.NewBuffer(gzBytes.bytes[:0])
	gzBuf.Write(blockHeader)

	var flateWriter *flate.Writer
	if pooled := bgzf.flatePool.Get(); pooled != nil {
		flateWriter = pooled.(*flate.Writer)
		flateWriter.Reset(gzBuf)
	} else {
		var err error
		if flateWriter, err = flate.NewWriter(gzBuf, bgzf.level); err != nil {
			bgzf.p.SetErr(err)
			return gzBytes
		}
	}
	if _, err := flateWriter.Write(b.bytes); err != nil {
		bgzf.p.SetErr(err)
	} else if err := flateWriter.Close(); err != nil {
		bgzf.p.SetErr(err)
	}
	bgzf.flatePool.Put(flateWriter)

	var tail [8]byte
	binary.LittleEndian.PutUint32(tail[0:4], crc32.ChecksumIEEE(b.bytes))
	binary.LittleEndian.PutUint32(tail[4:8], uint32(len(b.bytes)))
	gzBuf.Write(tail[:])
	gzBytes.bytes = gzBuf.Bytes()
	if len(gzBytes.bytes) > maxBlockSize {
		bgzf.p.SetErr(fmt.Errorf("compressed BGZF block too large (%v bytes)", len(gzBytes.bytes)))
	}
	binary.LittleEndian.PutUint16(gzBytes.bytes[16:18], uint16(len(gzBytes.bytes)-1))

	b.bytes = b.bytes[:0]
	bytesPool.Put(b)
	return gzBytes
}

// NewWriter returns a Writer for the given io.Writer.
//
// Following zlib, levels range from 1 (BestSpeed) to 9 (BestCompression);
// higher levels typically run slower but compress more. Level 0
// (NoCompression) does not attempt any compression; it only adds the
// necessary DEFLATE framing.
// Level -1 (DefaultCompression) uses the default compression level.
// Level -2 (HuffmanOnly) will use Huffman compression only, giving
// a very fast compression for all types of input, but sacrificing considerable
// compression efficiency.
//
// Blocks are deflated by at most threads concurrent workers; threads
// <= 0 means runtime.GOMAXPROCS(0).
func NewWriter(w io.Writer, level, threads int) (*Writer, error) {
	if level < flate.HuffmanOnly || level > flate.BestCompression {
		return nil, fmt.Errorf("invalid BGZF compression level %v", level)
	}
	bgzf := &Writer{
		w:       w,
		level:   level,
		block:   bytesPool.Get().(*bytesBlock),
		done:    make(chan struct{}),
		channel: make(chan *bytesBlock, 1),
	}
	bgzf.p.Source((*internalWriter)(bgzf))
	bgzf.p.Add(
		pipeline.LimitedPar(threads, pipeline.Receive(bgzf.deflate)),
		pipeline.StrictOrd(pipeline.Receive(func(_ int, data interface{}) interface{} {
			gzBytes := data.(*bytesBlock)
			if _, err := w.Write(gzBytes.bytes); err != nil {
				bgzf.p.SetErr(err)
			}
			gzBytes.bytes = gzBytes.bytes[:0]
			bytesPool.Put(gzBytes)
			return nil
		})),
	)
	bgzf.wait.Add(1)
	go func() {
		defer bgzf.wait.Done()
		defer close(bgzf.done)
		bgzf.p.Run()
	}()
	return bgzf, nil
}

func (bgzf *Writer) sendBlock() error {
	select {
	case bgzf.channel <- bgzf.block:
		bgzf.block = bytesPool.Get().(*bytesBlock)
		return nil
	case <-bgzf.done:
		if err := bgzf.p.Err(); err != nil {
			return err
		}
		return errors.New("BGZF compression terminated early")
	}
}

// Close flushes any pending data, waits for all blocks to be written,
// and terminates the file with the BGZF end-of-file marker.
//
// Close does not close the underlying io.Writer.
func (bgzf *Writer) Close() error {
	var err error
	if len(bgzf.block.bytes) > 0 {
		err = bgzf.sendBlock()
	}
	close(bgzf.channel)
	bgzf.wait.Wait()
	if perr := bgzf.p.Err(); perr != nil {
		return perr
	}
	if err != nil {
		return err
	}
	_, err = bgzf.w.Write(eofMarker)
	return err
}

// Write implements the corresponding method of io.Writer.
func (bgzf *Writer) Write(p []byte) (n int, err error) {
	total := len(p)
	for len(p) > 0 {
		k := maxDataSize - len(bgzf.block.bytes)
		if k > len(p) {
			k = len(p)
		}
		bgzf.block.bytes = append(bgzf.block.bytes, p[:k]...)
		p = p[k:]
		if len(bgzf.block.bytes) == maxDataSize {
			if err = bgzf.sendBlock(); err != nil {
				return total - len(p), err
			}
		}
	}
	return total, nil
}
