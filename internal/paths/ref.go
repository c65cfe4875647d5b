package paths

import (
	"errors"
	"os"
)

// Ref is a local file standing in for a logical input (a name or a URL). Temp
// refs are owned by the invocation and removed by Release.
type Ref struct {
	Logical string
	Local   string
	Temp    bool
}

// Local wraps a resolved, caller owned path.
func Local(logical, local string) *Ref {
	return &Ref{Logical: logical, Local: local}
}

// Temp wraps a downloaded file the invocation owns.
func Temp(logical, local string) *Ref {
	return &Ref{Logical: logical, Local: local, Temp: true}
}

// Release deletes temp files. It is safe to call on nil and more than once.
func (r *Ref) Release() error {
	if r == nil || !r.Temp || r.Local == "" {
		return nil
	}
	err := os.Remove(r.Local)
	if errors.Is(err, os.ErrNotExist) {
		err = nil
	}
	r.Local = ""
	return err
}
