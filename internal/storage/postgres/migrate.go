package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"
)

// ApplyMigrationsFromDir 以“按文件名排序”的方式执行 SQL 迁移，返回执行的文件数。
// 迁移文件需自身幂等（create ... if not exists），每次启动都会全部执行一遍。
func ApplyMigrationsFromDir(ctx context.Context, db *sql.DB, dir string, log zerolog.Logger) (int, error) {
	files, err := migrationFiles(dir)
	if err != nil {
		return 0, err
	}

	for _, f := range files {
		b, err := os.ReadFile(f)
		if err != nil {
			return 0, err
		}
		if _, err := db.ExecContext(ctx, string(b)); err != nil {
			return 0, fmt.Errorf("apply %s: %w", filepath.Base(f), err)
		}
		log.Debug().Str("file", filepath.Base(f)).Msg("迁移已执行")
	}
	return len(files), nil
}

// migrationFiles 目录下的 .sql 文件，按文件名排序
func migrationFiles(dir string) ([]string, error) {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(name, ".sql") {
			continue
		}
		files = append(files, filepath.Join(dir, name))
	}
	sort.Strings(files)
	return files, nil
}
