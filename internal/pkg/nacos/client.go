// internal/pkg/nacos/client.go
package nacos

import (
	"net"
	"strconv"
	"strings"

	"github.com/nacos-group/nacos-sdk-go/v2/clients"
	"github.com/nacos-group/nacos-sdk-go/v2/clients/config_client"
	"github.com/nacos-group/nacos-sdk-go/v2/clients/naming_client"
	"github.com/nacos-group/nacos-sdk-go/v2/common/constant"
	"github.com/nacos-group/nacos-sdk-go/v2/vo"
	"github.com/pkg/errors"

	"nexus-fulfillment/internal/pkg/logger"
)

const defaultGroup = "DEFAULT_GROUP"

// Client 封装了 Nacos 的命名客户端和配置客户端
type Client struct {
	namingClient naming_client.INamingClient
	configClient config_client.IConfigClient

	groupName string
}

// NewClient 创建 Nacos 客户端，addrs 格式为 "ip1:port1,ip2:port2"
func NewClient(addrs, namespaceID, groupName string) (*Client, error) {
	if namespaceID == "" {
		logger.L().Warn().Msg("NACOS_NAMESPACE is not set. Using default public namespace.")
	}
	if groupName == "" {
		groupName = defaultGroup
	}

	serverConfigs, err := ParseServerConfigs(addrs)
	if err != nil {
		return nil, err
	}
	clientConfig := *constant.NewClientConfig(
		constant.WithNotLoadCacheAtStart(true),
		constant.WithLogDir("/tmp/nacos/log"),
		constant.WithCacheDir("/tmp/nacos/cache"),
		constant.WithLogLevel("warn"),
		constant.WithNamespaceId(namespaceID),
	)
	param := vo.NacosClientParam{ClientConfig: &clientConfig, ServerConfigs: serverConfigs}

	namingClient, err := clients.NewNamingClient(param)
	if err != nil {
		return nil, errors.Wrap(err, "create nacos naming client")
	}
	configClient, err := clients.NewConfigClient(param)
	if err != nil {
		namingClient.CloseClient()
		return nil, errors.Wrap(err, "create nacos config client")
	}

	logger.L().Info().Str("addrs", addrs).Msg("Successfully connected to Nacos.")
	return &Client{namingClient: namingClient, configClient: configClient, groupName: groupName}, nil
}

// ParseServerConfigs 解析逗号分隔的 host:port 列表
func ParseServerConfigs(addrs string) ([]constant.ServerConfig, error) {
	var serverConfigs []constant.ServerConfig
	for _, addr := range strings.Split(addrs, ",") {
		addr = strings.TrimSpace(addr)
		if addr == "" {
			continue
		}
		host, portStr, err := net.SplitHostPort(addr)
		if err != nil {
			return nil, errors.Errorf("invalid nacos address format: %s", addr)
		}
		port, err := strconv.ParseUint(portStr, 10, 64)
		if err != nil {
			return nil, errors.Errorf("invalid port in nacos address: %s", portStr)
		}
		serverConfigs = append(serverConfigs, *constant.NewServerConfig(host, port))
	}
	if len(serverConfigs) == 0 {
		return nil, errors.New("no nacos server address configured")
	}
	return serverConfigs, nil
}

// RegisterServiceInstance 以临时实例注册服务，心跳断开后会自动摘除
func (c *Client) RegisterServiceInstance(serviceName, ip string, port int) error {
	success, err := c.namingClient.RegisterInstance(vo.RegisterInstanceParam{
		Ip:          ip,
		Port:        uint64(port),
		ServiceName: serviceName,
		Weight:      10,
		Enable:      true,
		Healthy:     true,
		Ephemeral:   true,
		GroupName:   c.groupName,
	})
	if err != nil {
		return errors.Wrap(err, "register service with nacos")
	}
	if !success {
		return errors.Errorf("nacos registration was not successful for service: %s", serviceName)
	}
	logger.L().Info().Str("service", serviceName).Str("ip", ip).Int("port", port).Msg("Service registered to Nacos")
	return nil
}

// DeregisterServiceInstance 从 Nacos 注销服务实例
func (c *Client) DeregisterServiceInstance(serviceName, ip string, port int) error {
	_, err := c.namingClient.DeregisterInstance(vo.DeregisterInstanceParam{
		Ip:          ip,
		Port:        uint64(port),
		ServiceName: serviceName,
		Ephemeral:   true,
		GroupName:   c.groupName,
	})
	if err != nil {
		return errors.Wrap(err, "deregister service from nacos")
	}
	logger.L().Info().Str("service", serviceName).Msg("Service deregistered from Nacos")
	return nil
}

// GetConfig 读取 dataID 对应的配置内容
func (c *Client) GetConfig(dataID string) (string, error) {
	content, err := c.configClient.GetConfig(vo.ConfigParam{DataId: dataID, Group: c.groupName})
	if err != nil {
		return "", errors.Wrapf(err, "get nacos config %s", dataID)
	}
	return content, nil
}

// ListenConfig 监听 dataID 的变更，onChange 在 SDK 的回调协程中执行
func (c *Client) ListenConfig(dataID string, onChange func(content string)) error {
	err := c.configClient.ListenConfig(vo.ConfigParam{
		DataId: dataID,
		Group:  c.groupName,
		OnChange: func(namespace, group, dataId, data string) {
			logger.L().Info().Str("data_id", dataId).Str("group", group).Msg("nacos config changed")
			onChange(data)
		},
	})
	return errors.Wrapf(err, "listen nacos config %s", dataID)
}

// Close 关闭底层客户端
func (c *Client) Close() {
	c.configClient.CloseClient()
	c.namingClient.CloseClient()
}

// OutboundIP 返回本机对外通信使用的 IP，用于服务注册
func OutboundIP() (string, error) {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "", errors.Wrap(err, "detect outbound ip")
	}
	defer conn.Close()
	return conn.LocalAddr().(*net.UDPAddr).IP.String(), nil
}
