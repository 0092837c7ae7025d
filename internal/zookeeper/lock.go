// internal/zookeeper/lock.go
package zookeeper

import (
	"context"
	"fmt"
	"github.com/go-zookeeper/zk"
	"github.com/pkg/errors"
	"sort"
	"strconv"
	"strings"
	"time"
)

const (
	lockRoot   = "/distributed_locks" // 所有分布式锁的根节点
	lockPrefix = "lock-"
)

// Connect 建立 ZooKeeper 会话并等待连接就绪
func Connect(servers []string, sessionTimeout time.Duration) (*zk.Conn, error) {
	conn, events, err := zk.Connect(servers, sessionTimeout, zk.WithLogInfo(false))
	if err != nil {
		return nil, errors.Wrap(err, "connect zookeeper")
	}
	timeout := time.After(sessionTimeout)
	for {
		select {
		case ev := <-events:
			if ev.State == zk.StateHasSession {
				// 之后的事件不再关心，持续排空防止 SDK 阻塞
				go func() {
					for range events {
					}
				}()
				return conn, nil
			}
		case <-timeout:
			conn.Close()
			return nil, errors.Errorf("zookeeper session not established within %s", sessionTimeout)
		}
	}
}

// DistributedLock 基于临时顺序节点的公平锁
type DistributedLock struct {
	conn     *zk.Conn
	path     string // 锁的路径，例如 /distributed_locks/catalog-schema-migration
	lockNode string // 成功获取锁后，自己创建的节点路径
}

// NewDistributedLock 创建锁实例，并确保父节点存在
func NewDistributedLock(conn *zk.Conn, resourceID string) (*DistributedLock, error) {
	lockPath := lockRoot + "/" + resourceID
	for _, p := range []string{lockRoot, lockPath} {
		if err := ensureNode(conn, p); err != nil {
			return nil, err
		}
	}
	return &DistributedLock{conn: conn, path: lockPath}, nil
}

func ensureNode(conn *zk.Conn, path string) error {
	exists, _, err := conn.Exists(path)
	if err != nil {
		return errors.Wrapf(err, "check node %s", path)
	}
	if exists {
		return nil
	}
	_, err = conn.Create(path, nil, 0, zk.WorldACL(zk.PermAll))
	if err != nil && !errors.Is(err, zk.ErrNodeExists) {
		return errors.Wrapf(err, "create node %s", path)
	}
	return nil
}

// sequenceOf 取出顺序节点末尾的序号。
// protected 节点名形如 _c_<guid>-lock-0000000003，不能直接按字符串排序。
func sequenceOf(node string) (int64, error) {
	i := strings.LastIndex(node, lockPrefix)
	if i < 0 {
		return 0, fmt.Errorf("unexpected lock node %q", node)
	}
	return strconv.ParseInt(node[i+len(lockPrefix):], 10, 64)
}

// sortBySequence 按序号升序排列，忽略无法解析的节点
func sortBySequence(children []string) []string {
	type entry struct {
		name string
		seq  int64
	}
	entries := make([]entry, 0, len(children))
	for _, c := range children {
		seq, err := sequenceOf(c)
		if err != nil {
			continue
		}
		entries = append(entries, entry{c, seq})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].seq < entries[j].seq })
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.name
	}
	return out
}

// Lock 阻塞直到获取锁或 ctx 结束
func (l *DistributedLock) Lock(ctx context.Context) error {
	nodePath, err := l.conn.CreateProtectedEphemeralSequential(l.path+"/"+lockPrefix, nil, zk.WorldACL(zk.PermAll))
	if err != nil {
		return errors.Wrap(err, "create sequential node")
	}
	l.lockNode = nodePath
	myNodeName := strings.TrimPrefix(nodePath, l.path+"/")

	for {
		children, _, err := l.conn.Children(l.path)
		if err != nil {
			return errors.Wrap(err, "list lock nodes")
		}
		children = sortBySequence(children)

		prev := ""
		for i, child := range children {
			if child == myNodeName {
				if i > 0 {
					prev = children[i-1]
				}
				break
			}
		}
		if prev == "" {
			// 自己是最小节点，成功获取锁
			return nil
		}

		// 只监听前一个节点，避免羊群效应
		exists, _, eventChan, err := l.conn.ExistsW(l.path + "/" + prev)
		if err != nil {
			return errors.Wrap(err, "watch previous node")
		}
		if !exists {
			continue
		}

		select {
		case <-eventChan:
		case <-ctx.Done():
			_ = l.Unlock()
			return ctx.Err()
		}
	}
}

// Unlock 释放锁
func (l *DistributedLock) Unlock() error {
	if l.lockNode == "" {
		return errors.New("no lock to unlock")
	}
	err := l.conn.Delete(l.lockNode, -1)
	if err != nil && !errors.Is(err, zk.ErrNoNode) {
		return errors.Wrap(err, "delete lock node")
	}
	l.lockNode = ""
	return nil
}
