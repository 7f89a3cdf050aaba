package coding

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/chibi-cli/chibi/internal/tools"
)

// DirList renders a size-formatted tree of root, bounded to maxDepth levels,
// optionally including dotfiles.
func DirList(root string, maxDepth int, showHidden bool) *tools.Result {
	info, err := os.Stat(root)
	if err != nil {
		return tools.ErrorResult(fmt.Sprintf("dir_list: %v", err))
	}
	if !info.IsDir() {
		return tools.ErrorResult("dir_list: not a directory")
	}

	var sb strings.Builder
	if err := walkTree(&sb, root, "", 0, maxDepth, showHidden); err != nil {
		return tools.ErrorResult(fmt.Sprintf("dir_list: %v", err))
	}
	return tools.OK(sb.String())
}

func walkTree(sb *strings.Builder, dir, prefix string, depth, maxDepth int, showHidden bool) error {
	if maxDepth > 0 && depth >= maxDepth {
		return nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	filtered := entries[:0]
	for _, e := range entries {
		if !showHidden && strings.HasPrefix(e.Name(), ".") {
			continue
		}
		filtered = append(filtered, e)
	}
	sort.Slice(filtered, func(i, j int) bool {
		if filtered[i].IsDir() != filtered[j].IsDir() {
			return filtered[i].IsDir()
		}
		return filtered[i].Name() < filtered[j].Name()
	})

	for i, e := range filtered {
		last := i == len(filtered)-1
		connector := "├── "
		childPrefix := prefix + "│   "
		if last {
			connector = "└── "
			childPrefix = prefix + "    "
		}
		full := filepath.Join(dir, e.Name())
		if e.IsDir() {
			fmt.Fprintf(sb, "%s%s%s/\n", prefix, connector, e.Name())
			if err := walkTree(sb, full, childPrefix, depth+1, maxDepth, showHidden); err != nil {
				return err
			}
			continue
		}
		info, err := e.Info()
		size := int64(0)
		if err == nil {
			size = info.Size()
		}
		fmt.Fprintf(sb, "%s%s%s (%s)\n", prefix, connector, e.Name(), humanize.Bytes(uint64(size)))
	}
	return nil
}
