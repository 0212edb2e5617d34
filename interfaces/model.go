package interfaces

// Initializable view models detect their initial state once the root is wired up.
type Initializable interface {
	Init()
}

// Updateable view models refresh their exported fields from engine state.
type Updateable interface {
	Update()
}

// Dirtyable tracks whether a view model changed since it was last published.
type Dirtyable interface {
	IsDirty() bool
	ClearDirty()
	MarkDirty()
}
