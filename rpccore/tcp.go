package rpccore

import (
	"encoding/gob"
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/valyala/gorpc"
)

// TODO: github.com/valyala/gorpc looks pretty good, but the last commit of it
// is years ago

// pingMethod is reserved by the transport for liveness probes and never
// reaches the registered callback.
const pingMethod = "_ping"

func init() {
	gob.Register(tcpReqMsg{})
	gob.Register(tcpResMsg{})

	// ignore all log printed by [gorpc]
	gorpc.SetErrorLogger(func(format string, args ...interface{}) {})
}

type TCPNetwork struct {
	lock        sync.RWMutex
	nodeAddrMap map[NodeID]string
	timeout     time.Duration
}

func NewTCPNetwork(timeout time.Duration) *TCPNetwork {
	n := new(TCPNetwork)
	n.nodeAddrMap = make(map[NodeID]string)
	n.timeout = timeout
	return n
}

func (n *TCPNetwork) NewRemoteNode(nodeID NodeID, addr string) error {
	n.lock.Lock()
	defer n.lock.Unlock()
	if _, ok := n.nodeAddrMap[nodeID]; ok {
		return errors.New(fmt.Sprintf(
			"Node with same ID already exists. NodeID: %v.", nodeID))
	}
	n.nodeAddrMap[nodeID] = addr
	return nil
}

func (n *TCPNetwork) NewLocalNode(nodeID NodeID, remoteAddr, listenAddr string) (*TCPNode, error) {
	n.lock.Lock()
	defer n.lock.Unlock()
	if _, ok := n.nodeAddrMap[nodeID]; ok {
		return nil, errors.New(fmt.Sprintf(
			"Node with same ID already exists. NodeID: %v.", nodeID))
	}

	defaultCallback := func(source NodeID, method string, data []byte) ([]byte, error) {
		return nil, errors.New("No callback function provided.")
	}

	node := &TCPNode{
		id:        nodeID,
		network:   n,
		callback:  defaultCallback,
		clientMap: make(map[NodeID]*gorpc.Client),
	}

	s := &gorpc.Server{
		Addr: listenAddr,
		Handler: func(clientAddr string, request interface{}) interface{} {
			req := request.(tcpReqMsg)
			if req.Method == pingMethod {
				return &tcpResMsg{}
			}
			node.lock.RLock()
			callback := node.callback
			node.lock.RUnlock()
			data, err := callback(req.Source, req.Method, req.Data)
			errStr := ""
			if err != nil {
				errStr = fmt.Sprintf("%v", err)
			}
			return &tcpResMsg{Data: data, Err: errStr}
		},
	}
	if err := s.Start(); err != nil {
		return nil, err
	}
	node.server = s
	n.nodeAddrMap[nodeID] = remoteAddr
	return node, nil
}

type TCPNode struct {
	id        NodeID
	network   *TCPNetwork
	callback  Callback
	server    *gorpc.Server
	clientMap map[NodeID]*gorpc.Client
	lock      sync.RWMutex
}

func (node *TCPNode) NodeID() NodeID {
	return node.id
}

func (node *TCPNode) SendRawRequest(target NodeID, method string, data []byte) ([]byte, error) {
	client := node.lookupClient(target)
	if client == nil {
		return nil, errors.New(fmt.Sprintf(
			"Unable to find target node: %v.", target))
	}
	res, err := client.Call(&tcpReqMsg{Source: node.id, Method: method, Data: data})
	if err != nil {
		return nil, err
	}
	if res.(tcpResMsg).Err != "" {
		return res.(tcpResMsg).Data, errors.New(res.(tcpResMsg).Err)
	}
	return res.(tcpResMsg).Data, nil
}

func (node *TCPNode) Ping(target NodeID) bool {
	client := node.lookupClient(target)
	if client == nil {
		return false
	}
	_, err := client.Call(&tcpReqMsg{Source: node.id, Method: pingMethod})
	return err == nil
}

func (node *TCPNode) lookupClient(target NodeID) *gorpc.Client {
	node.lock.RLock()
	client, ok := node.clientMap[target]
	node.lock.RUnlock()
	if ok {
		return client
	}
	// first time sending to this target, create a new client
	// Double-checked locking (Write lock)
	node.lock.Lock()
	defer node.lock.Unlock()
	client, ok = node.clientMap[target]
	if !ok {
		node.network.lock.RLock()
		addr, ok := node.network.nodeAddrMap[target]
		node.network.lock.RUnlock()
		if !ok {
			return nil
		}
		client = &gorpc.Client{Addr: addr, RequestTimeout: node.network.timeout}
		client.Start()
		node.clientMap[target] = client
	}
	return client
}

func (node *TCPNode) RegisterRawRequestCallback(callback Callback) {
	node.lock.Lock()
	node.callback = callback
	node.lock.Unlock()
}

// Shutdown stops the listening server and all outgoing clients.
func (node *TCPNode) Shutdown() {
	node.lock.Lock()
	defer node.lock.Unlock()
	if node.server != nil {
		node.server.Stop()
		node.server = nil
	}
	for _, client := range node.clientMap {
		client.Stop()
	}
	node.clientMap = make(map[NodeID]*gorpc.Client)
}

type tcpReqMsg struct {
	Source NodeID
	Method string
	Data   []byte
}

type tcpResMsg struct {
	Err  string
	Data []byte
}
