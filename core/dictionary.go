package core

import (
	"bytes"
	"strconv"
	"sync"
	"unicode/utf8"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/janschiefer/stm32f4xx-hal/tinycompress"
)

// Dictionary is the self-description the host downloads with identify: a
// zlib-compressed JSON object listing every command and response with its
// ID, plus firmware constants and enumerations.
type Dictionary struct {
	mu            sync.Mutex
	reg           *CommandRegistry
	version       string
	buildVersions string
	constants     map[string]string
	enumerations  map[string]map[string]int
	cached        []byte
}

// NewDictionary describes reg. It rebuilds lazily whenever reg changes.
func NewDictionary(reg *CommandRegistry, version string) *Dictionary {
	d := &Dictionary{
		reg:           reg,
		version:       version,
		buildVersions: "tinygo",
		constants:     make(map[string]string),
		enumerations:  make(map[string]map[string]int),
	}
	reg.mu.Lock()
	reg.onChange = d.invalidate
	reg.mu.Unlock()
	return d
}

func (d *Dictionary) invalidate() {
	d.mu.Lock()
	d.cached = nil
	d.mu.Unlock()
}

// SetConstant publishes a value under name in the config section.
func (d *Dictionary) SetConstant(name string, value any) {
	var s string
	switch v := value.(type) {
	case string:
		s = v
	case int:
		s = strconv.Itoa(v)
	case uint32:
		s = strconv.FormatUint(uint64(v), 10)
	case uint8:
		s = strconv.FormatUint(uint64(v), 10)
	case bool:
		s = strconv.FormatBool(v)
	default:
		panic("core: unsupported constant type for " + name)
	}
	d.mu.Lock()
	d.constants[name] = s
	d.cached = nil
	d.mu.Unlock()
}

// SetEnumValue maps value to index within the named enumeration.
func (d *Dictionary) SetEnumValue(enum, value string, index int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	e := d.enumerations[enum]
	if e == nil {
		e = make(map[string]int)
		d.enumerations[enum] = e
	}
	e[value] = index
	d.cached = nil
}

// Bytes returns the compressed dictionary.
func (d *Dictionary) Bytes() ([]byte, error) {
	cmds := d.reg.All()

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cached != nil {
		return d.cached, nil
	}
	var buf bytes.Buffer
	w := tinycompress.NewWriter(&buf)
	if _, err := w.Write(d.json(cmds)); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	d.cached = buf.Bytes()
	return d.cached, nil
}

// Chunk returns up to count bytes of the compressed dictionary starting at
// offset. Past the end it returns an empty slice.
func (d *Dictionary) Chunk(offset uint32, count int) ([]byte, error) {
	data, err := d.Bytes()
	if err != nil {
		return nil, err
	}
	if offset >= uint32(len(data)) {
		return nil, nil
	}
	end := min(int(offset)+count, len(data))
	return data[offset:end], nil
}

// json must be called with d.mu held.
func (d *Dictionary) json(cmds []*Command) []byte {
	b := make([]byte, 0, 1024)
	b = append(b, `{"version":`...)
	b = appendString(b, d.version)
	b = append(b, `,"build_versions":`...)
	b = appendString(b, d.buildVersions)

	b = append(b, `,"config":{`...)
	names := maps.Keys(d.constants)
	slices.Sort(names)
	for i, name := range names {
		if i > 0 {
			b = append(b, ',')
		}
		b = appendString(b, name)
		b = append(b, ':')
		b = appendString(b, d.constants[name])
	}

	b = append(b, `},"commands":{`...)
	b = appendCommands(b, cmds, true)
	b = append(b, `},"responses":{`...)
	b = appendCommands(b, cmds, false)
	b = append(b, '}')

	if len(d.enumerations) > 0 {
		b = append(b, `,"enumerations":{`...)
		enums := maps.Keys(d.enumerations)
		slices.Sort(enums)
		for i, name := range enums {
			if i > 0 {
				b = append(b, ',')
			}
			b = appendString(b, name)
			b = append(b, ":{"...)
			values := maps.Keys(d.enumerations[name])
			slices.Sort(values)
			for j, v := range values {
				if j > 0 {
					b = append(b, ',')
				}
				b = appendString(b, v)
				b = append(b, ':')
				b = strconv.AppendInt(b, int64(d.enumerations[name][v]), 10)
			}
			b = append(b, '}')
		}
		b = append(b, '}')
	}
	return append(b, '}')
}

func appendCommands(b []byte, cmds []*Command, handlers bool) []byte {
	first := true
	for _, c := range cmds {
		if (c.Handler != nil) != handlers {
			continue
		}
		if !first {
			b = append(b, ',')
		}
		first = false
		b = appendString(b, c.Signature())
		b = append(b, ':')
		b = strconv.AppendUint(b, uint64(c.ID), 10)
	}
	return b
}

const hexDigits = "0123456789abcdef"

// appendString appends s as a JSON string. Control characters and invalid
// UTF-8 are escaped; other text passes through unchanged.
func appendString(b []byte, s string) []byte {
	b = append(b, '"')
	for i := 0; i < len(s); {
		c := s[i]
		if c < utf8.RuneSelf {
			switch {
			case c == '"' || c == '\\':
				b = append(b, '\\', c)
			case c < 0x20:
				b = append(b, '\\', 'u', '0', '0', hexDigits[c>>4], hexDigits[c&0xf])
			default:
				b = append(b, c)
			}
			i++
			continue
		}
		r, size := utf8.DecodeRuneInString(s[i:])
		if r == utf8.RuneError && size == 1 {
			b = append(b, `\ufffd`...)
		} else {
			b = append(b, s[i:i+size]...)
		}
		i += size
	}
	return append(b, '"')
}
