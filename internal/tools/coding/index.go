package coding

import (
	"context"
	"encoding/json"
	"time"

	"github.com/chibi-cli/chibi/internal/index"
	"github.com/chibi-cli/chibi/internal/tools"
)

const indexPluginTimeout = 30 * time.Second

// IndexUpdate wraps index.Store.Update as a tool result.
func IndexUpdate(ctx context.Context, store *index.Store, root, pluginsDir string, force bool) *tools.Result {
	res, err := store.Update(ctx, root, pluginsDir, force, indexPluginTimeout)
	if err != nil {
		return tools.ErrorResult(err.Error())
	}
	data, merr := json.Marshal(res)
	if merr != nil {
		return tools.ErrorResult(merr.Error())
	}
	return tools.OK(string(data))
}

// IndexQuery dispatches to query_symbols or query_refs depending on which
// filters are populated: refSubstr alone means query_refs, otherwise
// query_symbols (possibly with empty filters, matching everything).
func IndexQuery(ctx context.Context, store *index.Store, nameSubstr, fileSubstr, kind, refSubstr string) *tools.Result {
	if refSubstr != "" && nameSubstr == "" && fileSubstr == "" && kind == "" {
		hits, err := store.QueryRefs(ctx, refSubstr)
		if err != nil {
			return tools.ErrorResult(err.Error())
		}
		data, _ := json.Marshal(hits)
		return tools.OK(string(data))
	}
	hits, err := store.QuerySymbols(ctx, nameSubstr, fileSubstr, kind)
	if err != nil {
		return tools.ErrorResult(err.Error())
	}
	data, _ := json.Marshal(hits)
	return tools.OK(string(data))
}

// IndexStatus reports the {files, symbols, refs, per-lang, active} summary.
func IndexStatus(ctx context.Context, store *index.Store) *tools.Result {
	st, err := store.Status(ctx)
	if err != nil {
		return tools.ErrorResult(err.Error())
	}
	data, merr := json.Marshal(st)
	if merr != nil {
		return tools.ErrorResult(merr.Error())
	}
	return tools.OK(string(data))
}
