//go:build rp2350

package wifi

import (
	"errors"
	"log/slog"
	"net"
	"net/netip"
	"sync"
	"time"

	"github.com/soypat/cyw43439"
	"github.com/soypat/seqs/eth/dhcp"
	"github.com/soypat/seqs/stacks"
)

const mtu = cyw43439.MTU

// PicoStation joins a network with the CYW43439 radio of a Pico 2 W and
// runs DHCP on the seqs user-space stack.
type PicoStation struct {
	dev    *cyw43439.Device
	logger *slog.Logger

	mu     sync.Mutex
	cfg    Config
	notify NotifyFunc
	stack  *stacks.PortStack
}

// NewPicoStation wraps the on-board radio.
func NewPicoStation(logger *slog.Logger) *PicoStation {
	return &PicoStation{
		dev:    cyw43439.NewPicoWDevice(),
		logger: logger,
	}
}

// Start powers up the radio.
func (p *PicoStation) Start(cfg Config, notify NotifyFunc) error {
	wcfg := cyw43439.DefaultWifiConfig()
	wcfg.Logger = p.logger
	if err := p.dev.Init(wcfg); err != nil {
		return err
	}

	p.mu.Lock()
	p.cfg = cfg
	p.notify = notify
	p.mu.Unlock()

	go notify(Notification{Kind: StationStarted})
	return nil
}

// Connect joins the network and requests an address in the background.
func (p *PicoStation) Connect() {
	p.mu.Lock()
	cfg, notify := p.cfg, p.notify
	p.mu.Unlock()

	go func() {
		if err := p.dev.JoinWPA2(cfg.SSID, cfg.Password); err != nil {
			p.logger.Warn("join failed", "err", err.Error())
			notify(Notification{Kind: Disconnected})
			return
		}
		addr, err := p.dhcp(cfg)
		if err != nil {
			p.logger.Warn("dhcp failed", "err", err.Error())
			notify(Notification{Kind: Disconnected})
			return
		}
		notify(Notification{Kind: AddressAcquired, Addr: addr})
	}()
}

func (p *PicoStation) dhcp(cfg Config) (netip.Addr, error) {
	p.mu.Lock()
	stack := p.stack
	if stack == nil {
		mac, err := p.dev.HardwareAddr6()
		if err != nil {
			p.mu.Unlock()
			return netip.Addr{}, err
		}
		stack = stacks.NewPortStack(stacks.PortStackConfig{
			MAC:             mac,
			MaxOpenPortsUDP: 1,
			MaxOpenPortsTCP: 1,
			MTU:             mtu,
			Logger:          p.logger,
		})
		p.dev.RecvEthHandle(stack.RecvEth)
		go nicLoop(p.dev, stack)
		p.stack = stack
	}
	p.mu.Unlock()

	client := stacks.NewDHCPClient(stack, dhcp.DefaultClientPort)
	err := client.BeginRequest(stacks.DHCPRequestConfig{
		RequestedAddr: cfg.Address.Addr(),
		Xid:           uint32(time.Now().Nanosecond()),
		Hostname:      cfg.Hostname,
	})
	if err != nil {
		return netip.Addr{}, err
	}
	for i := 0; client.State() != dhcp.StateBound; i++ {
		if i > 15 {
			// No server answered: fall back to the configured address.
			if !cfg.Address.IsValid() {
				return netip.Addr{}, errors.New("no dhcp reply")
			}
			stack.SetAddr(cfg.Address.Addr())
			return cfg.Address.Addr(), nil
		}
		time.Sleep(time.Second / 2)
	}
	ip := client.Offer()
	stack.SetAddr(ip)
	return ip, nil
}

// Listener returns a TCP listener on port once an address is assigned.
func (p *PicoStation) Listener(port uint16) (net.Listener, error) {
	p.mu.Lock()
	stack := p.stack
	p.mu.Unlock()
	if stack == nil {
		return nil, errors.New("wifi: stack not up")
	}
	l, err := stacks.NewTCPListener(stack, stacks.TCPListenerConfig{
		MaxConnections: 3,
		ConnTxBufSize:  512,
		ConnRxBufSize:  512,
	})
	if err != nil {
		return nil, err
	}
	if err := l.StartListening(port); err != nil {
		return nil, err
	}
	return l, nil
}

// nicLoop moves frames between the radio and the stack.
func nicLoop(dev *cyw43439.Device, stack *stacks.PortStack) {
	var buf [mtu]byte
	for {
		idle := true
		if got, err := dev.PollOne(); err == nil && got {
			idle = false
		}
		n, err := stack.HandleEth(buf[:])
		if err == nil && n > 0 {
			idle = false
			if err := dev.SendEth(buf[:n]); err != nil {
				println("send:", err.Error())
			}
		}
		if idle {
			time.Sleep(50 * time.Millisecond)
		}
	}
}
