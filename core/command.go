package core

import "sync"

// CommandHandler handles one console command
type CommandHandler func() error

// Command is a single-key console command (e.g. 'f' toggles the fan)
type Command struct {
	Key     byte
	Name    string
	Handler CommandHandler
}

// CommandRegistry maps console keys to handlers
type CommandRegistry struct {
	mu       sync.RWMutex
	commands map[byte]*Command
	order    []byte // registration order, for help output
}

// NewCommandRegistry creates a new command registry
func NewCommandRegistry() *CommandRegistry {
	return &CommandRegistry{
		commands: make(map[byte]*Command),
	}
}

// Register adds a command. It returns false if the key is already taken;
// the existing handler is kept.
func (r *CommandRegistry) Register(key byte, name string, handler CommandHandler) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.commands[key]; exists {
		return false
	}

	r.commands[key] = &Command{
		Key:     key,
		Name:    name,
		Handler: handler,
	}
	r.order = append(r.order, key)
	return true
}

// GetCommand retrieves a command by key
func (r *CommandRegistry) GetCommand(key byte) (*Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cmd, ok := r.commands[key]
	return cmd, ok
}

// Count returns the number of registered commands
func (r *CommandRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.commands)
}

// Dispatch calls the handler registered for key.
// Whitespace (line endings from terminals) is ignored.
func (r *CommandRegistry) Dispatch(key byte) error {
	switch key {
	case '\r', '\n', ' ', '\t':
		return nil
	}

	cmd, ok := r.GetCommand(key)
	if !ok || cmd.Handler == nil {
		return ErrUnknownCommand
	}
	return cmd.Handler()
}

// Help lists the commands as "key name" lines in registration order
func (r *CommandRegistry) Help() string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	help := ""
	for _, key := range r.order {
		help += string(key) + " " + r.commands[key].Name + "\n"
	}
	return help
}
