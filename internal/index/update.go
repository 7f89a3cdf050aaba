package index

import (
	"bytes"
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"time"

	gitignore "github.com/sabhiram/go-gitignore"

	"github.com/chibi-cli/chibi/internal/logx"
)

// UpdateResult is what index_update reports back (spec §6 testable
// property 7: files_indexed / files_skipped / files_removed).
type UpdateResult struct {
	FilesIndexed int `json:"files_indexed"`
	FilesSkipped int `json:"files_skipped"`
	FilesRemoved int `json:"files_removed"`
}

type fileMeta struct {
	id    int64
	mtime int64
	size  int64
}

type pluginFile struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

type pluginSymbol struct {
	Name       string `json:"name"`
	Kind       string `json:"kind"`
	LineStart  int    `json:"line_start"`
	LineEnd    int    `json:"line_end"`
	Signature  string `json:"signature,omitempty"`
	Visibility string `json:"visibility,omitempty"`
	Path       string `json:"path"`
}

type pluginRef struct {
	FromLine int    `json:"from_line"`
	ToName   string `json:"to_name"`
	Kind     string `json:"kind,omitempty"`
	Path     string `json:"path"`
}

type pluginResponse struct {
	Symbols []pluginSymbol `json:"symbols"`
	Refs    []pluginRef    `json:"refs"`
}

// Update walks root honoring .gitignore (and always excluding .chibi/),
// detects each file's language by extension, skips files whose (mtime,size)
// are unchanged unless force is set, and dispatches changed files in
// per-language batches to "lang_<language>" plugins found under pluginsDir.
// Plugin failure or malformed output degrades to an unparsed file row
// (spec §4.13 step 4), never aborting the whole update.
func (s *Store) Update(ctx context.Context, root, pluginsDir string, force bool, timeout time.Duration) (*UpdateResult, error) {
	existing, err := s.existingFiles(ctx)
	if err != nil {
		return nil, err
	}

	ignorer := loadIgnore(root)
	seen := map[string]bool{}
	byLang := map[string][]pluginFile{}
	result := &UpdateResult{}

	walkErr := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return nil
		}
		if rel == ".chibi" || hasPrefix(rel, ".chibi"+string(filepath.Separator)) {
			return nil
		}
		if ignorer != nil && ignorer.MatchesPath(rel) {
			return nil
		}
		lang, ok := detectLanguage(rel)
		if !ok {
			return nil
		}
		seen[rel] = true

		mtime := info.ModTime().Unix()
		size := info.Size()
		if prior, found := existing[rel]; found && !force && prior.mtime == mtime && prior.size == size {
			result.FilesSkipped++
			return nil
		}

		content, readErr := os.ReadFile(path)
		if readErr != nil {
			return nil
		}
		byLang[lang] = append(byLang[lang], pluginFile{Path: rel, Content: string(content)})
		return nil
	})
	if walkErr != nil {
		return nil, fmt.Errorf("index: walk %s: %w", root, walkErr)
	}

	for lang, files := range byLang {
		resp, pluginErr := runLanguagePlugin(ctx, pluginsDir, lang, files, timeout)
		if pluginErr != nil {
			logx.WarnCF("index", "language plugin failed, indexing without symbols", map[string]any{"lang": lang, "error": pluginErr.Error()})
		}
		for _, f := range files {
			info, statErr := os.Stat(filepath.Join(root, f.Path))
			if statErr != nil {
				continue
			}
			if err := s.upsertFile(ctx, f.Path, lang, info, resp); err != nil {
				return nil, err
			}
			result.FilesIndexed++
		}
	}

	removed, err := s.removeMissing(ctx, existing, seen)
	if err != nil {
		return nil, err
	}
	result.FilesRemoved = removed

	return result, nil
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}

func loadIgnore(root string) *gitignore.GitIgnore {
	path := filepath.Join(root, ".gitignore")
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	ig, err := gitignore.CompileIgnoreFile(path)
	if err != nil {
		return nil
	}
	return ig
}

func (s *Store) existingFiles(ctx context.Context) (map[string]fileMeta, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, path, mtime, size FROM files`)
	if err != nil {
		return nil, fmt.Errorf("index: query files: %w", err)
	}
	defer rows.Close()

	out := map[string]fileMeta{}
	for rows.Next() {
		var id, mtime, size int64
		var path string
		if err := rows.Scan(&id, &path, &mtime, &size); err != nil {
			return nil, err
		}
		out[path] = fileMeta{id: id, mtime: mtime, size: size}
	}
	return out, rows.Err()
}

func (s *Store) upsertFile(ctx context.Context, path, lang string, info os.FileInfo, resp *pluginResponse) error {
	return s.WithTx(ctx, func(tx *sql.Tx) error {
		hash := hashFileInfo(path, info)
		now := time.Now().Unix()

		var fileID int64
		err := tx.QueryRowContext(ctx, `SELECT id FROM files WHERE path = ?`, path).Scan(&fileID)
		switch {
		case err == sql.ErrNoRows:
			res, execErr := tx.ExecContext(ctx,
				`INSERT INTO files(path, lang, mtime, size, hash, indexed_at) VALUES (?,?,?,?,?,?)`,
				path, lang, info.ModTime().Unix(), info.Size(), hash, now)
			if execErr != nil {
				return execErr
			}
			fileID, _ = res.LastInsertId()
		case err != nil:
			return err
		default:
			if _, execErr := tx.ExecContext(ctx,
				`UPDATE files SET lang=?, mtime=?, size=?, hash=?, indexed_at=? WHERE id=?`,
				lang, info.ModTime().Unix(), info.Size(), hash, now, fileID); execErr != nil {
				return execErr
			}
			if _, execErr := tx.ExecContext(ctx, `DELETE FROM symbols WHERE file_id=?`, fileID); execErr != nil {
				return execErr
			}
			if _, execErr := tx.ExecContext(ctx, `DELETE FROM refs WHERE from_file_id=?`, fileID); execErr != nil {
				return execErr
			}
		}

		if resp == nil {
			return nil
		}
		for _, sym := range resp.Symbols {
			if sym.Path != path {
				continue
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO symbols(file_id, name, kind, line_start, line_end, signature, visibility) VALUES (?,?,?,?,?,?,?)`,
				fileID, sym.Name, sym.Kind, sym.LineStart, sym.LineEnd, nullable(sym.Signature), nullable(sym.Visibility)); err != nil {
				return err
			}
		}
		for _, ref := range resp.Refs {
			if ref.Path != path {
				continue
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO refs(from_file_id, from_line, to_name, kind) VALUES (?,?,?,?)`,
				fileID, ref.FromLine, ref.ToName, nullable(ref.Kind)); err != nil {
				return err
			}
		}
		return nil
	})
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func hashFileInfo(path string, info os.FileInfo) string {
	h := sha256.Sum256([]byte(fmt.Sprintf("%s:%d:%d", path, info.ModTime().Unix(), info.Size())))
	return hex.EncodeToString(h[:])[:16]
}

func (s *Store) removeMissing(ctx context.Context, existing map[string]fileMeta, seen map[string]bool) (int, error) {
	var toRemove []string
	for path := range existing {
		if !seen[path] {
			toRemove = append(toRemove, path)
		}
	}
	sort.Strings(toRemove)
	for _, path := range toRemove {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM files WHERE path = ?`, path); err != nil {
			return 0, fmt.Errorf("index: delete %s: %w", path, err)
		}
	}
	return len(toRemove), nil
}

func runLanguagePlugin(ctx context.Context, pluginsDir, lang string, files []pluginFile, timeout time.Duration) (*pluginResponse, error) {
	exe := filepath.Join(pluginsDir, "lang_"+lang)
	if _, err := os.Stat(exe); err != nil {
		return nil, fmt.Errorf("no lang_%s plugin", lang)
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	payload, err := json.Marshal(map[string]any{"files": files})
	if err != nil {
		return nil, err
	}

	cmd := exec.CommandContext(runCtx, exe)
	cmd.Stdin = bytes.NewReader(payload)
	out, err := cmd.Output()
	if err != nil {
		return nil, err
	}

	var resp pluginResponse
	if err := json.Unmarshal(out, &resp); err != nil {
		return nil, fmt.Errorf("malformed plugin output: %w", err)
	}
	return &resp, nil
}
