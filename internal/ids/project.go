package ids

// ProjectId identifies the logical build rooted at a working directory on
// the daemon that called `dake`. It is comparable and serves as a map key
// for fresh-id allocation and for the target-lock set (spec.md §3).
type ProjectId struct {
	Caller DaemonId
	Path   string
}

func NewProjectId(caller DaemonId, path string) ProjectId {
	return ProjectId{Caller: caller, Path: path}
}

func (p ProjectId) String() string {
	return p.Caller.String() + ":" + p.Path
}
