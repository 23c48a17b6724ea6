package core

import (
	"errors"
	"strconv"
	"sync"
)

var (
	ErrUnknownCommand = errors.New("core: unknown command")
	ErrNotCommand     = errors.New("core: id names a response")
)

// DispatchError reports a command ID that cannot be dispatched.
type DispatchError struct {
	ID  uint16
	Err error
}

func (e *DispatchError) Error() string {
	return e.Err.Error() + ": " + strconv.Itoa(int(e.ID))
}

func (e *DispatchError) Unwrap() error { return e.Err }

// CommandHandler decodes its own arguments from *data, consuming them.
type CommandHandler func(data *[]byte) error

// Command is a dictionary entry. Entries with a nil Handler are responses,
// sent by the firmware and never dispatched.
type Command struct {
	ID      uint16
	Name    string
	Format  string
	Handler CommandHandler
}

// Signature is the dictionary key of c: its name followed by its argument
// format.
func (c *Command) Signature() string {
	if c.Format == "" {
		return c.Name
	}
	return c.Name + " " + c.Format
}

// CommandRegistry assigns IDs in registration order.
type CommandRegistry struct {
	mu       sync.RWMutex
	commands []*Command
	byName   map[string]*Command
	onChange func()
}

func NewCommandRegistry() *CommandRegistry {
	return &CommandRegistry{byName: make(map[string]*Command)}
}

// Register adds a command and returns its ID. Registering a name twice
// returns the first ID.
func (r *CommandRegistry) Register(name, format string, handler CommandHandler) uint16 {
	r.mu.Lock()
	if c, ok := r.byName[name]; ok {
		r.mu.Unlock()
		return c.ID
	}
	c := &Command{ID: uint16(len(r.commands)), Name: name, Format: format, Handler: handler}
	r.commands = append(r.commands, c)
	r.byName[name] = c
	notify := r.onChange
	r.mu.Unlock()

	if notify != nil {
		notify()
	}
	return c.ID
}

// RegisterResponse adds a firmware-to-host message.
func (r *CommandRegistry) RegisterResponse(name, format string) uint16 {
	return r.Register(name, format, nil)
}

func (r *CommandRegistry) Command(id uint16) (*Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if int(id) >= len(r.commands) {
		return nil, false
	}
	return r.commands[id], true
}

func (r *CommandRegistry) CommandByName(name string) (*Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.byName[name]
	return c, ok
}

func (r *CommandRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.commands)
}

// All returns the entries in ID order.
func (r *CommandRegistry) All() []*Command {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]*Command(nil), r.commands...)
}

// Dispatch runs the handler registered under id.
func (r *CommandRegistry) Dispatch(id uint16, data *[]byte) error {
	c, ok := r.Command(id)
	if !ok {
		return &DispatchError{ID: id, Err: ErrUnknownCommand}
	}
	if c.Handler == nil {
		return &DispatchError{ID: id, Err: ErrNotCommand}
	}
	return c.Handler(data)
}
