// internal/pkg/lock/zookeeper.go
package lock

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/go-zookeeper/zk"
	"github.com/pkg/errors"

	"nexus-fulfillment/internal/pkg/logger"
)

const (
	defaultLockRoot = "/fulfillment_locks" // 所有分布式锁的根节点
	seqSuffixLen    = 10                   // ZooKeeper 顺序节点的序号固定为 10 位
)

// ZookeeperLocker 基于临时顺序节点实现的公平锁：
// 每个请求在 /root/<key> 下创建一个节点，序号最小者持锁，其余只监听自己的前驱节点。
type ZookeeperLocker struct {
	conn *zk.Conn
	root string
}

// NewZookeeperLocker 创建锁并确保根节点存在
func NewZookeeperLocker(conn *zk.Conn, root string) (*ZookeeperLocker, error) {
	if root == "" {
		root = defaultLockRoot
	}
	if err := ensureNode(conn, root); err != nil {
		return nil, errors.Wrapf(err, "create lock root %s", root)
	}
	return &ZookeeperLocker{conn: conn, root: root}, nil
}

// ConnectZookeeper 建立 ZooKeeper 会话，sessionTimeout 内断开的会话会使其持有的锁节点自动删除。
func ConnectZookeeper(servers []string, sessionTimeout time.Duration) (*zk.Conn, error) {
	conn, _, err := zk.Connect(servers, sessionTimeout, zk.WithLogInfo(false))
	if err != nil {
		return nil, errors.Wrap(err, "connect zookeeper")
	}
	return conn, nil
}

func (l *ZookeeperLocker) Acquire(ctx context.Context, key string) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	lockPath := l.root + "/" + nodeName(key)
	if err := ensureNode(l.conn, lockPath); err != nil {
		return nil, errors.Wrapf(err, "create lock path %s", lockPath)
	}

	// 格式为: /root/<key>/_c_<guid>-lock-0000000001
	node, err := l.conn.CreateProtectedEphemeralSequential(lockPath+"/lock-", nil, zk.WorldACL(zk.PermAll))
	if err != nil {
		return nil, errors.Wrap(err, "create sequential node")
	}
	release := func() {
		if err := l.conn.Delete(node, -1); err != nil && !errors.Is(err, zk.ErrNoNode) {
			logger.Ctx(ctx).Error().Err(err).Str("node", node).Msg("failed to delete lock node")
		}
	}

	if err := l.waitTurn(ctx, lockPath, strings.TrimPrefix(node, lockPath+"/")); err != nil {
		release()
		return nil, err
	}
	return release, nil
}

func (l *ZookeeperLocker) waitTurn(ctx context.Context, lockPath, myNode string) error {
	for {
		children, _, err := l.conn.Children(lockPath)
		if err != nil {
			return errors.Wrap(err, "list lock children")
		}
		// protected 节点带有随机前缀，只能按序号排序
		sort.Slice(children, func(i, j int) bool {
			return sequenceOf(children[i]) < sequenceOf(children[j])
		})

		idx := -1
		for i, child := range children {
			if child == myNode {
				idx = i
				break
			}
		}
		switch {
		case idx < 0:
			return errors.Errorf("lock node %s disappeared", myNode)
		case idx == 0:
			return nil
		}

		exists, _, events, err := l.conn.ExistsW(lockPath + "/" + children[idx-1])
		if err != nil {
			return errors.Wrap(err, "watch previous node")
		}
		if !exists {
			continue
		}

		select {
		case <-events:
			// 前驱节点被删除或会话事件，重新检查顺序
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func sequenceOf(node string) string {
	if len(node) < seqSuffixLen {
		return node
	}
	return node[len(node)-seqSuffixLen:]
}

func ensureNode(conn *zk.Conn, path string) error {
	exists, _, err := conn.Exists(path)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	_, err = conn.Create(path, nil, 0, zk.WorldACL(zk.PermAll))
	if err != nil && !errors.Is(err, zk.ErrNodeExists) {
		return err
	}
	return nil
}
