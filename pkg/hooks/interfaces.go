package hooks

// HookManager defines the interface for managing hooks.
type HookManager interface {
	// Execute runs the script registered for hookType, if any.
	Execute(hookType HookType, ctx HookContext) error

	// AddHook registers or replaces a hook.
	AddHook(hook Hook) error

	// RemoveHook removes the hook of the specified type.
	RemoveHook(hookType HookType) error

	// HasHook checks if a hook of the specified type exists.
	HasHook(hookType HookType) bool
}
