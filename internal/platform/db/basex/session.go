// Package basex は BaseX サーバーのクライアント/サーバープロトコルを実装します。
package basex

import (
	"bufio"
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ogurasousui/basex-empresa/internal/platform/config"
)

const (
	cmdQuery   byte = 0x00
	cmdClose   byte = 0x02
	cmdExecute byte = 0x05

	escapeByte byte = 0xFF
)

var (
	// ErrAuthentication はログインが拒否された場合に返却されます。
	ErrAuthentication = errors.New("basex: access denied")
	// ErrClosed はクローズ済みセッションを使用した場合に返却されます。
	ErrClosed = errors.New("basex: session closed")
	// ErrBroken は通信途中の失敗でストリームの同期が失われた場合に返却されます。
	ErrBroken = errors.New("basex: session broken by previous transport failure")
	// ErrInvalidDatabase はデータベース名が不正な場合に返却されます。
	ErrInvalidDatabase = errors.New("basex: invalid database name")
)

var databasePattern = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

// ServerError はサーバーがコマンドまたはクエリの失敗を報告した場合のエラーです。
type ServerError struct {
	Message string
}

func (e *ServerError) Error() string {
	return "basex: server error: " + e.Message
}

// Session は BaseX サーバーとの 1 本の接続です。
//
// 同時に処理されるリクエストは常に 1 つで、クエリハンドルは次のリクエストの前に解放されます。
type Session struct {
	mu      sync.Mutex
	conn    net.Conn
	r       *bufio.Reader
	w       *bufio.Writer
	timeout time.Duration
	closed  bool
	broken  bool
}

// Dial はサーバーに接続し認証を行ったセッションを返します。
func Dial(ctx context.Context, cfg config.StoreConfig) (*Session, error) {
	var d net.Dialer
	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("basex: dial %s: %w", addr, err)
	}

	s := newSession(conn, cfg.Timeout)
	if err := s.login(ctx, cfg.User, cfg.Password); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return s, nil
}

// Connect は Dial した後に OPEN でデータベースを開きます。
func Connect(ctx context.Context, cfg config.StoreConfig) (*Session, error) {
	s, err := Dial(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := s.Open(ctx, cfg.Database); err != nil {
		_ = s.conn.Close()
		return nil, err
	}
	return s, nil
}

func newSession(conn net.Conn, timeout time.Duration) *Session {
	return &Session{
		conn:    conn,
		r:       bufio.NewReader(conn),
		w:       bufio.NewWriter(conn),
		timeout: timeout,
	}
}

func (s *Session) login(ctx context.Context, user, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.applyDeadline(ctx); err != nil {
		return err
	}

	challenge, err := s.readString()
	if err != nil {
		return fmt.Errorf("basex: read challenge: %w", err)
	}

	var hash string
	if realm, nonce, ok := strings.Cut(challenge, ":"); ok {
		hash = md5Hex(md5Hex(user+":"+realm+":"+password) + nonce)
	} else {
		hash = md5Hex(md5Hex(password) + challenge)
	}

	s.writeString(user)
	s.writeString(hash)
	if err := s.w.Flush(); err != nil {
		return fmt.Errorf("basex: send credentials: %w", err)
	}

	status, err := s.r.ReadByte()
	if err != nil {
		return fmt.Errorf("basex: read login status: %w", err)
	}
	if status != 0 {
		return ErrAuthentication
	}
	return nil
}

// Open はセッションで使用するデータベースを開きます。
func (s *Session) Open(ctx context.Context, database string) error {
	if !databasePattern.MatchString(database) {
		return fmt.Errorf("%q: %w", database, ErrInvalidDatabase)
	}
	_, err := s.Execute(ctx, "OPEN "+database)
	return err
}

// Execute はデータベースコマンドを実行し結果を返します。
func (s *Session) Execute(ctx context.Context, command string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stop, err := s.ready(ctx)
	if err != nil {
		return "", err
	}
	defer stop()

	s.writeString(command)
	if err := s.w.Flush(); err != nil {
		return "", s.fail(ctx, "send command", err)
	}

	result, err := s.readString()
	if err != nil {
		return "", s.fail(ctx, "read command result", err)
	}
	info, err := s.readString()
	if err != nil {
		return "", s.fail(ctx, "read command info", err)
	}
	status, err := s.r.ReadByte()
	if err != nil {
		return "", s.fail(ctx, "read command status", err)
	}
	if status != 0 {
		return "", &ServerError{Message: info}
	}
	return result, nil
}

// Evaluate はクエリを登録・実行・解放し、その結果を返します。
//
// 3 つのリクエストは同じロックの下で行われ、途中に他のリクエストが割り込むことはありません。
func (s *Session) Evaluate(ctx context.Context, query string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stop, err := s.ready(ctx)
	if err != nil {
		return "", err
	}
	defer stop()

	id, err := s.exchange(ctx, cmdQuery, query)
	if err != nil {
		return "", err
	}

	result, execErr := s.exchange(ctx, cmdExecute, id)
	if s.broken {
		return "", execErr
	}
	if _, closeErr := s.exchange(ctx, cmdClose, id); closeErr != nil && execErr == nil {
		return "", closeErr
	}
	if execErr != nil {
		return "", execErr
	}
	return result, nil
}

// Query はサーバーにクエリを登録し、そのハンドルを返します。
func (s *Session) Query(ctx context.Context, query string) (*Query, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stop, err := s.ready(ctx)
	if err != nil {
		return nil, err
	}
	defer stop()

	id, err := s.exchange(ctx, cmdQuery, query)
	if err != nil {
		return nil, err
	}
	return &Query{session: s, id: id}, nil
}

// Broken は通信途中の失敗でセッションが使用できなくなったかを返します。
func (s *Session) Broken() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.broken
}

// Close はデータベースを閉じ、接続を解放します。
//
// CLOSE コマンドが失敗した場合でも接続は必ず閉じられます。
func (s *Session) Close(ctx context.Context) error {
	var errs []error
	if _, err := s.Execute(ctx, "CLOSE"); err != nil && !errors.Is(err, ErrClosed) && !errors.Is(err, ErrBroken) {
		errs = append(errs, fmt.Errorf("basex: close database: %w", err))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errors.Join(errs...)
	}
	s.closed = true

	if !s.broken {
		s.writeString("exit")
		_ = s.w.Flush()
	}
	if err := s.conn.Close(); err != nil {
		errs = append(errs, fmt.Errorf("basex: close connection: %w", err))
	}
	return errors.Join(errs...)
}

// exchange は 1 バイトのコマンドと引数を送信し、結果とステータスを読み取ります。
func (s *Session) exchange(ctx context.Context, cmd byte, arg string) (string, error) {
	if err := s.w.WriteByte(cmd); err != nil {
		return "", s.fail(ctx, "send request", err)
	}
	s.writeString(arg)
	if err := s.w.Flush(); err != nil {
		return "", s.fail(ctx, "send request", err)
	}

	result, err := s.readString()
	if err != nil {
		return "", s.fail(ctx, "read result", err)
	}
	status, err := s.r.ReadByte()
	if err != nil {
		return "", s.fail(ctx, "read status", err)
	}
	if status != 0 {
		msg, err := s.readString()
		if err != nil {
			return "", s.fail(ctx, "read error message", err)
		}
		return "", &ServerError{Message: msg}
	}
	return result, nil
}

// ready はリクエストを開始できるかを確認し、期限を設定します。
//
// 返される stop はリクエストの終了時に呼び出します。それまでに ctx がキャンセルされると読み書き中の通信が中断されます。
func (s *Session) ready(ctx context.Context) (func(), error) {
	if s.closed {
		return nil, ErrClosed
	}
	if s.broken {
		return nil, ErrBroken
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.applyDeadline(ctx); err != nil {
		return nil, err
	}
	interrupted := make(chan struct{})
	stop := context.AfterFunc(ctx, func() {
		_ = s.conn.SetDeadline(time.Unix(1, 0))
		close(interrupted)
	})
	return func() {
		if !stop() {
			<-interrupted
		}
	}, nil
}

func (s *Session) applyDeadline(ctx context.Context) error {
	var deadline time.Time
	if d, ok := ctx.Deadline(); ok {
		deadline = d
	} else if s.timeout > 0 {
		deadline = time.Now().Add(s.timeout)
	}
	if err := s.conn.SetDeadline(deadline); err != nil {
		return fmt.Errorf("basex: set deadline: %w", err)
	}
	return nil
}

// fail はセッションを壊れた状態にします。ctx の期限切れ・キャンセルが原因の場合は ctx.Err() を返します。
func (s *Session) fail(ctx context.Context, op string, err error) error {
	s.broken = true
	if ctxErr := contextErr(ctx); ctxErr != nil {
		return fmt.Errorf("basex: %s: %w", op, ctxErr)
	}
	return fmt.Errorf("basex: %s: %w", op, err)
}

// contextErr は ctx の期限を過ぎていれば、タイマーの発火前でも context.DeadlineExceeded を返します。
func contextErr(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if d, ok := ctx.Deadline(); ok && !time.Now().Before(d) {
		return context.DeadlineExceeded
	}
	return nil
}

// writeString は 0x00 と 0xFF をエスケープし、終端の 0x00 を付けて書き込みます。
func (s *Session) writeString(v string) {
	for i := 0; i < len(v); i++ {
		b := v[i]
		if b == 0x00 || b == escapeByte {
			_ = s.w.WriteByte(escapeByte)
		}
		_ = s.w.WriteByte(b)
	}
	_ = s.w.WriteByte(0x00)
}

func (s *Session) readString() (string, error) {
	var b strings.Builder
	for {
		c, err := s.r.ReadByte()
		if err != nil {
			return "", err
		}
		switch c {
		case 0x00:
			return b.String(), nil
		case escapeByte:
			c, err = s.r.ReadByte()
			if err != nil {
				return "", err
			}
		}
		b.WriteByte(c)
	}
}

// Query はサーバー側に登録されたクエリのハンドルです。
type Query struct {
	session *Session
	id      string
	closed  bool
}

// Execute はクエリを実行し結果をまとめて返します。
func (q *Query) Execute(ctx context.Context) (string, error) {
	q.session.mu.Lock()
	defer q.session.mu.Unlock()

	if q.closed {
		return "", ErrClosed
	}
	stop, err := q.session.ready(ctx)
	if err != nil {
		return "", err
	}
	defer stop()
	return q.session.exchange(ctx, cmdExecute, q.id)
}

// Close はサーバー側のクエリハンドルを解放します。
func (q *Query) Close(ctx context.Context) error {
	q.session.mu.Lock()
	defer q.session.mu.Unlock()

	if q.closed {
		return nil
	}
	q.closed = true
	stop, err := q.session.ready(ctx)
	if err != nil {
		return err
	}
	defer stop()
	_, err = q.session.exchange(ctx, cmdClose, q.id)
	return err
}

func md5Hex(v string) string {
	sum := md5.Sum([]byte(v))
	return hex.EncodeToString(sum[:])
}
