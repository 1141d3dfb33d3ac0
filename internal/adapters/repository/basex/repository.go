package basex

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ogurasousui/basex-empresa/internal/core/org"
	"github.com/ogurasousui/basex-empresa/internal/platform/config"
	"github.com/ogurasousui/basex-empresa/internal/platform/xquery"
)

// Evaluator はクエリを 1 回評価し、結果の文字列を返します。
//
// 結果が無い場合は空文字列で、null と空一致は区別されません。
type Evaluator interface {
	Evaluate(ctx context.Context, query string) (string, error)
}

// Repository は BaseX を利用した部署・社員永続化の実装です。
type Repository struct {
	eval Evaluator
	q    queries
}

var _ org.Repository = (*Repository)(nil)

// NewRepository は Repository を生成します。
func NewRepository(eval Evaluator, layout config.LayoutConfig) (*Repository, error) {
	q, err := newQueries(layout)
	if err != nil {
		return nil, err
	}
	return &Repository{eval: eval, q: q}, nil
}

func (r *Repository) evaluate(ctx context.Context, expr xquery.Expr) (string, error) {
	result, err := r.eval.Evaluate(ctx, expr.String())
	if err != nil {
		return "", translateStoreError(err)
	}
	return result, nil
}

func (r *Repository) exists(ctx context.Context, expr xquery.Expr) (bool, error) {
	result, err := r.evaluate(ctx, expr)
	if err != nil {
		return false, err
	}
	return result != "", nil
}

// required は必須項目を取得します。空の結果はエンティティが存在しないことを意味します。
func (r *Repository) required(ctx context.Context, expr xquery.Expr, code string, notFound error) (string, error) {
	result, err := r.evaluate(ctx, expr)
	if err != nil {
		return "", err
	}
	if result == "" {
		return "", fmt.Errorf("%s: %w", code, notFound)
	}
	return result, nil
}

func (r *Repository) mutate(ctx context.Context, expr xquery.Expr) error {
	_, err := r.evaluate(ctx, expr)
	return err
}

func translateStoreError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("basex: %w: %w", org.ErrTransport, err)
}

// splitLines は改行区切りのリスト結果を分割します。空の結果は 0 件です。
func splitLines(result string) []string {
	if result == "" {
		return []string{}
	}
	lines := strings.Split(result, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSuffix(line, "\r")
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}
