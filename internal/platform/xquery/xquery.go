// Package xquery は部署・社員ストア向けの XQuery / XQuery Update 式を組み立てます。
//
// 値は必ず Literal として埋め込まれ、呼び出し側の文字列をそのままクエリ本文に連結することはありません。
package xquery

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrUnsafeName は要素名・属性名・変数名として使えない文字列が渡された場合に返却されます。
var ErrUnsafeName = errors.New("xquery: unsafe name")

var namePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_.-]*$`)

// Expr はクエリ本文として評価可能な式です。
type Expr interface {
	String() string
}

// Literal は文字列リテラルです。
type Literal string

// String は二重引用符で囲み、`"` と `&` をエスケープしたリテラル表現を返します。
func (l Literal) String() string {
	escaped := strings.NewReplacer(`&`, `&amp;`, `"`, `""`).Replace(string(l))
	return `"` + escaped + `"`
}

// Path はロケーションパスです。
type Path struct {
	base  string
	steps []string
}

// Root は /name から始まる絶対パスを返します。
func Root(name string) Path {
	mustName(name)
	return Path{steps: []string{"/" + name}}
}

// Var は $name から始まるパスを返します。
func Var(name string) Path {
	mustName(name)
	return Path{base: "$" + name}
}

// Child は子要素ステップを追加したパスを返します。
func (p Path) Child(name string) Path {
	mustName(name)
	return p.with("/" + name)
}

// Attr は属性ステップを追加したパスを返します。
func (p Path) Attr(name string) Path {
	mustName(name)
	return p.with("/@" + name)
}

// Where は直前のステップに述語を追加したパスを返します。
func (p Path) Where(pred Predicate) Path {
	return p.with("[" + pred.String() + "]")
}

func (p Path) with(step string) Path {
	steps := make([]string, len(p.steps), len(p.steps)+1)
	copy(steps, p.steps)
	return Path{base: p.base, steps: append(steps, step)}
}

func (p Path) String() string {
	return p.base + strings.Join(p.steps, "")
}

// Predicate はステップ述語です。
type Predicate struct {
	text string
}

// AttrEquals は @name = "value" 述語を返します。
func AttrEquals(name, value string) Predicate {
	mustName(name)
	return Predicate{text: "@" + name + " = " + Literal(value).String()}
}

func (p Predicate) String() string {
	return p.text
}

type raw string

func (r raw) String() string {
	return string(r)
}

// Data は data(expr) を返します。
func Data(e Expr) Expr {
	return raw("data(" + e.String() + ")")
}

// For は for $name in in return (ret) を返します。
func For(name string, in Path, ret Expr) Expr {
	mustName(name)
	return raw("for $" + name + " in " + in.String() + " return (" + ret.String() + ")")
}

// Fragment はクエリ本文に直接埋め込める XML 要素の断片です。
//
// 直接要素構築子として解釈されるため、`{` と `}` は二重化されていなければなりません。
type Fragment string

// NewFragment はシリアライズ済みの XML を Fragment に変換します。
func NewFragment(xml string) Fragment {
	return Fragment(strings.NewReplacer("{", "{{", "}", "}}").Replace(xml))
}

func (f Fragment) String() string {
	return string(f)
}

// InsertLast は insert node frag as last into target を返します。
func InsertLast(frag Fragment, target Path) Expr {
	return raw("insert node " + frag.String() + " as last into " + target.String())
}

// Delete は delete node target を返します。
func Delete(target Expr) Expr {
	return raw("delete node " + target.String())
}

// ReplaceValue は replace value of node target with "value" を返します。
func ReplaceValue(target Expr, value string) Expr {
	return raw("replace value of node " + target.String() + " with " + Literal(value).String())
}

// ValidateName は名前が要素名・属性名として安全かを検証します。
func ValidateName(name string) error {
	if !namePattern.MatchString(name) {
		return fmt.Errorf("%q: %w", name, ErrUnsafeName)
	}
	return nil
}

// 名前はコード中の定数か設定値から来るため、不正な値はプログラミングエラーとして扱います。
func mustName(name string) {
	if err := ValidateName(name); err != nil {
		panic(err)
	}
}
