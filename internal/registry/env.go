package registry

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/vinodismyname/sheetrelay/internal/docs"
	"github.com/vinodismyname/sheetrelay/internal/fetch"
	"github.com/vinodismyname/sheetrelay/internal/paths"
	"github.com/vinodismyname/sheetrelay/internal/runtime"
	"github.com/vinodismyname/sheetrelay/internal/upload"
	"github.com/vinodismyname/sheetrelay/internal/workbooks"
	"github.com/vinodismyname/sheetrelay/pkg/validation"
)

// uploadPrefix names staged copies pushed by auto-upload tools.
const uploadPrefix = "uploaded_"

// Env carries the collaborators every tool handler works through.
type Env struct {
	Resolver  *paths.Resolver
	Guard     *paths.Guard
	Fetcher   *fetch.Fetcher
	Books     *workbooks.Manager
	Uploader  upload.Uploader
	Extractor *docs.Extractor
	Limits    runtime.Limits
}

// Local resolves a file name and checks it against the directory allow-list.
func (e *Env) Local(field, name string) (string, error) {
	p := e.Resolver.Resolve(name)
	if err := e.Guard.Check(field, p); err != nil {
		return "", err
	}
	return p, nil
}

// Target resolves a workbook a tool is about to modify. Remote workbooks are
// read-only.
func (e *Env) Target(field, name string) (string, error) {
	if fetch.IsRemote(name) {
		return "", &validation.Error{Field: field, Message: "must be a local path; URLs can only be read"}
	}
	return e.Local(field, name)
}

// Acquire returns a local file for name. URLs are downloaded into a temp file
// the caller releases; anything else is resolved in place.
func (e *Env) Acquire(ctx context.Context, field, name string) (*paths.Ref, error) {
	if fetch.IsRemote(name) {
		local, err := e.Fetcher.Fetch(ctx, name, fetch.SpreadsheetFormat)
		if err != nil {
			return nil, err
		}
		return paths.Temp(name, local), nil
	}
	p, err := e.Local(field, name)
	if err != nil {
		return nil, err
	}
	return paths.Local(name, p), nil
}

// release drops a ref and logs a failed cleanup.
func release(ctx context.Context, ref *paths.Ref) {
	local := ""
	if ref != nil {
		local = ref.Local
	}
	if err := ref.Release(); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("path", local).Msg("remove temp file")
	}
}

// publish uploads a copy of localPath. It returns the message suffix and the
// download URL, which is empty when uploads are disabled.
func (e *Env) publish(ctx context.Context, localPath string) (string, string, error) {
	url, err := upload.Publish(ctx, e.Uploader, e.Fetcher.TempDir(), localPath, uploadPrefix)
	if upload.Skipped(err) {
		zerolog.Ctx(ctx).Debug().Str("path", localPath).Msg("upload skipped")
		return "\nUpload skipped: no upload target configured", "", nil
	}
	if err != nil {
		return "", "", err
	}
	zerolog.Ctx(ctx).Info().Str("url", url).Msg("artifact uploaded")
	return "\nDownload URL: " + url, url, nil
}
