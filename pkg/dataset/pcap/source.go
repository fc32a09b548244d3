// Package pcap turns packet captures into labeled tabular datasets, so a
// capture file can serve as one class source for the anomaly classifier.
package pcap

import (
	"errors"
	"strconv"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"

	"github.com/hed1ad/goboostml/pkg/dataset"
)

// Source reads packets from a capture file and emits one dataset row per
// packet, with a constant class label attached under the label column.
type Source struct {
	handle      *pcap.Handle
	extractor   *featureExtractor
	labelColumn string
	label       string
}

// Option configures a PCAP source.
type Option func(*Source)

// WithLabel sets the label column name and the class value stamped on
// every row. Defaults to column "label" with value "normal".
func WithLabel(column, value string) Option {
	return func(s *Source) {
		s.labelColumn = column
		s.label = value
	}
}

// NewFile opens a capture file as a dataset source.
func NewFile(filename string, opts ...Option) (*Source, error) {
	handle, err := pcap.OpenOffline(filename)
	if err != nil {
		return nil, err
	}
	return newSource(handle, opts...), nil
}

// NewLive opens a live interface as a dataset source. Capture runs until
// the handle is exhausted or closed.
func NewLive(iface string, snaplen int32, promisc bool, timeout time.Duration, opts ...Option) (*Source, error) {
	handle, err := pcap.OpenLive(iface, snaplen, promisc, timeout)
	if err != nil {
		return nil, err
	}
	return newSource(handle, opts...), nil
}

func newSource(handle *pcap.Handle, opts ...Option) *Source {
	s := &Source{
		handle:      handle,
		extractor:   &featureExtractor{},
		labelColumn: "label",
		label:       "normal",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load drains the capture into a dataset. Columns are the extracted
// feature names plus the label column, in that order.
func (s *Source) Load() (*dataset.Dataset, error) {
	if s.handle == nil {
		return nil, errors.New("pcap source not initialized")
	}

	columns := append(s.extractor.names(), s.labelColumn)

	var rows [][]string
	packetSource := gopacket.NewPacketSource(s.handle, s.handle.LinkType())
	for packet := range packetSource.Packets() {
		row := s.extractor.extract(packet)
		if row == nil {
			continue
		}
		rows = append(rows, append(row, s.label))
	}

	return dataset.New(columns, rows)
}

// Close releases the capture handle.
func (s *Source) Close() error {
	if s.handle != nil {
		s.handle.Close()
	}
	return nil
}

// featureExtractor converts packets to dataset rows. The protocol column
// is kept categorical so it flows through the category encoder like any
// other string feature.
type featureExtractor struct {
	lastTimestamp time.Time
}

func (e *featureExtractor) names() []string {
	return []string{
		"packet_size",
		"inter_arrival_time",
		"protocol",
		"src_port",
		"dst_port",
		"tcp_flags",
		"ip_ttl",
		"payload_size",
	}
}

func (e *featureExtractor) extract(packet gopacket.Packet) []string {
	size := len(packet.Data())

	var interArrival float64
	if metadata := packet.Metadata(); metadata != nil && !metadata.Timestamp.IsZero() {
		if !e.lastTimestamp.IsZero() {
			interArrival = metadata.Timestamp.Sub(e.lastTimestamp).Seconds()
		}
		e.lastTimestamp = metadata.Timestamp
	}

	protocol := "other"
	var srcPort, dstPort, tcpFlags float64
	if tcpLayer := packet.Layer(layers.LayerTypeTCP); tcpLayer != nil {
		tcp := tcpLayer.(*layers.TCP)
		protocol = "tcp"
		srcPort = float64(tcp.SrcPort)
		dstPort = float64(tcp.DstPort)
		tcpFlags = encodeTCPFlags(tcp)
	} else if udpLayer := packet.Layer(layers.LayerTypeUDP); udpLayer != nil {
		udp := udpLayer.(*layers.UDP)
		protocol = "udp"
		srcPort = float64(udp.SrcPort)
		dstPort = float64(udp.DstPort)
	} else if packet.Layer(layers.LayerTypeICMPv4) != nil {
		protocol = "icmp"
	}

	var ttl float64
	if ipLayer := packet.Layer(layers.LayerTypeIPv4); ipLayer != nil {
		ttl = float64(ipLayer.(*layers.IPv4).TTL)
	}

	var payload float64
	if appLayer := packet.ApplicationLayer(); appLayer != nil {
		payload = float64(len(appLayer.Payload()))
	}

	return []string{
		strconv.Itoa(size),
		strconv.FormatFloat(interArrival, 'f', -1, 64),
		protocol,
		strconv.FormatFloat(srcPort, 'f', -1, 64),
		strconv.FormatFloat(dstPort, 'f', -1, 64),
		strconv.FormatFloat(tcpFlags, 'f', -1, 64),
		strconv.FormatFloat(ttl, 'f', -1, 64),
		strconv.FormatFloat(payload, 'f', -1, 64),
	}
}

func encodeTCPFlags(tcp *layers.TCP) float64 {
	var flags float64
	if tcp.SYN {
		flags += 1
	}
	if tcp.ACK {
		flags += 2
	}
	if tcp.FIN {
		flags += 4
	}
	if tcp.RST {
		flags += 8
	}
	if tcp.PSH {
		flags += 16
	}
	if tcp.URG {
		flags += 32
	}
	return flags
}
