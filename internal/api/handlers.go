package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/bbernstein/dmxnet-go/internal/services/discovery"
	"github.com/bbernstein/dmxnet-go/internal/services/dmx"
	"github.com/bbernstein/dmxnet-go/pkg/artnet"
)

type healthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
	Uptime    string `json:"uptime"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   s.opts.Version,
		Uptime:    time.Since(s.startedAt).Round(time.Second).String(),
	})
}

type interfaceView struct {
	Name      string `json:"name"`
	Kind      string `json:"kind"`
	IP        string `json:"ip"`
	Broadcast string `json:"broadcast"`
	MAC       string `json:"mac"`
}

type nodeView struct {
	ShortName  string          `json:"shortName"`
	LongName   string          `json:"longName"`
	OEM        string          `json:"oem"`
	ListenPort int             `json:"listenPort"`
	ReplyCount int             `json:"replyCount"`
	Senders    int             `json:"senders"`
	Receivers  int             `json:"receivers"`
	Interfaces []interfaceView `json:"interfaces"`
}

func (s *Server) handleNode(w http.ResponseWriter, r *http.Request) {
	cfg := s.engine.Config()
	view := nodeView{
		ShortName:  cfg.ShortName,
		LongName:   cfg.LongName,
		OEM:        "0x" + strconv.FormatUint(uint64(cfg.OEM), 16),
		ListenPort: cfg.ListenPort,
		ReplyCount: s.engine.ReplyCount(),
		Senders:    len(s.engine.Senders()),
		Receivers:  len(s.engine.Receivers()),
		Interfaces: []interfaceView{},
	}
	for _, iface := range s.engine.Interfaces() {
		view.Interfaces = append(view.Interfaces, interfaceView{
			Name:      iface.Name,
			Kind:      iface.Kind,
			IP:        iface.IP.String(),
			Broadcast: iface.Broadcast.String(),
			MAC:       iface.MAC.String(),
		})
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleControllers(w http.ResponseWriter, r *http.Request) {
	controllers := s.engine.Controllers()
	if controllers == nil {
		controllers = []discovery.Controller{}
	}
	writeJSON(w, http.StatusOK, controllers)
}

func (s *Server) handleControllerHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusServiceUnavailable, "controller history is disabled")
		return
	}
	controllers, err := s.history.FindAll(r.Context())
	if err != nil {
		s.logger.Printf("Failed to load controller history: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to load controller history")
		return
	}
	writeJSON(w, http.StatusOK, controllers)
}

type senderView struct {
	Address     string `json:"address"`
	Destination string `json:"destination"`
	Broadcast   bool   `json:"broadcast"`
	Ready       bool   `json:"ready"`
	Sequence    int    `json:"sequence"`
	Values      []int  `json:"values"`
}

func newSenderView(sender *dmx.Sender) senderView {
	values := sender.Values()
	return senderView{
		Address:     sender.Address().String(),
		Destination: sender.Destination().String(),
		Broadcast:   sender.IsBroadcast(),
		Ready:       sender.IsReady(),
		Sequence:    int(sender.Sequence()),
		Values:      toInts(values[:]),
	}
}

func (s *Server) handleSenders(w http.ResponseWriter, r *http.Request) {
	views := []senderView{}
	for _, sender := range s.engine.Senders() {
		views = append(views, newSenderView(sender))
	}
	writeJSON(w, http.StatusOK, views)
}

type setChannelRequest struct {
	Value *int `json:"value"`
}

func (s *Server) handleSetChannel(w http.ResponseWriter, r *http.Request) {
	addr, err := artnet.ParsePortAddress(chi.URLParam(r, "address"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	channel, err := strconv.Atoi(chi.URLParam(r, "channel"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "channel must be an integer")
		return
	}

	var req setChannelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Value == nil {
		writeError(w, http.StatusBadRequest, `body must be {"value": <0-255>}`)
		return
	}

	var sender *dmx.Sender
	for _, candidate := range s.engine.Senders() {
		if candidate.Address() == addr {
			sender = candidate
			break
		}
	}
	if sender == nil {
		writeError(w, http.StatusNotFound, "no sender for universe "+addr.String())
		return
	}

	if err := sender.SetChannel(channel, *req.Value); err != nil {
		if errors.Is(err, artnet.ErrInvalidArgument) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		// The value is stored even when the send fails; the refresh loop retries.
		s.logger.Printf("Art-Net send error for %s: %v", addr, err)
	}
	writeJSON(w, http.StatusOK, newSenderView(sender))
}

type receiverView struct {
	Address string `json:"address"`
	Frames  uint64 `json:"frames"`
	Active  bool   `json:"active"`
	Values  []int  `json:"values,omitempty"`
}

func (s *Server) handleReceivers(w http.ResponseWriter, r *http.Request) {
	views := []receiverView{}
	for _, receiver := range s.engine.Receivers() {
		bound, _ := s.engine.Receiver(receiver.Address())
		views = append(views, receiverView{
			Address: receiver.Address().String(),
			Frames:  receiver.FrameCount(),
			Active:  bound == receiver,
		})
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleReceiver(w http.ResponseWriter, r *http.Request) {
	addr, err := artnet.ParsePortAddress(chi.URLParam(r, "address"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	receiver, ok := s.engine.Receiver(addr)
	if !ok {
		writeError(w, http.StatusNotFound, "no receiver for universe "+addr.String())
		return
	}
	values := receiver.Values()
	writeJSON(w, http.StatusOK, receiverView{
		Address: addr.String(),
		Frames:  receiver.FrameCount(),
		Active:  true,
		Values:  toInts(values[:]),
	})
}

func toInts(b []byte) []int {
	out := make([]int, len(b))
	for i, v := range b {
		out[i] = int(v)
	}
	return out
}
