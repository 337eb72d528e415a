package ipfs

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// fakeKubo emulates the subset of the Kubo RPC API the client uses.
type fakeKubo struct {
	mutex sync.Mutex

	blobs    map[string][]byte
	pins     map[string]bool
	services map[string]bool

	rootedHashes  bool
	addStatus     int
	serviceExists bool

	addCalls        int
	serviceAddCalls int
	pinAddCalls     int
	pinLsCalls      int
	pinRmCalls      int
}

func newFakeKubo(t *testing.T) (*fakeKubo, *httptest.Server) {
	t.Helper()

	fake := &fakeKubo{
		blobs:    map[string][]byte{},
		pins:     map[string]bool{},
		services: map[string]bool{},
	}
	server := httptest.NewServer(http.HandlerFunc(fake.serveHTTP))
	t.Cleanup(server.Close)
	return fake, server
}

func (f *fakeKubo) serveHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeRPCError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	f.mutex.Lock()
	defer f.mutex.Unlock()

	query := r.URL.Query()
	switch r.URL.Path {
	case "/api/v0/add":
		f.addCalls++
		if f.addStatus != 0 {
			writeRPCError(w, f.addStatus, "add failed")
			return
		}
		reader, err := r.MultipartReader()
		if err != nil {
			writeRPCError(w, http.StatusBadRequest, err.Error())
			return
		}
		part, err := reader.NextPart()
		if err != nil {
			writeRPCError(w, http.StatusBadRequest, err.Error())
			return
		}
		data, err := io.ReadAll(part)
		if err != nil {
			writeRPCError(w, http.StatusBadRequest, err.Error())
			return
		}
		address, _ := ComputeCID(data)
		f.blobs[address] = data
		hash := address
		if f.rootedHashes {
			hash = PathRoot + address
		}
		_ = json.NewEncoder(w).Encode(addResponse{Name: part.FileName(), Hash: hash, Size: fmt.Sprint(len(data))})
	case "/api/v0/cat":
		data, ok := f.blobs[query.Get("arg")]
		if !ok {
			writeRPCError(w, http.StatusInternalServerError, "block was not found locally (offline)")
			return
		}
		_, _ = w.Write(data)
	case "/api/v0/pin/remote/service/add":
		f.serviceAddCalls++
		args := query["arg"]
		if len(args) != 3 {
			writeRPCError(w, http.StatusBadRequest, "expected name, endpoint and key")
			return
		}
		if f.serviceExists || f.services[args[0]] {
			writeRPCError(w, http.StatusInternalServerError, "service already present")
			return
		}
		f.services[args[0]] = true
		w.WriteHeader(http.StatusOK)
	case "/api/v0/pin/remote/add":
		f.pinAddCalls++
		f.pins[query.Get("arg")] = true
		_ = json.NewEncoder(w).Encode(RemotePin{Status: "queued", Cid: query.Get("arg")})
	case "/api/v0/pin/remote/ls":
		f.pinLsCalls++
		if f.pins[query.Get("cid")] {
			_ = json.NewEncoder(w).Encode(RemotePin{Status: "pinned", Cid: query.Get("cid")})
		}
	case "/api/v0/pin/remote/rm":
		f.pinRmCalls++
		delete(f.pins, query.Get("cid"))
		w.WriteHeader(http.StatusOK)
	default:
		writeRPCError(w, http.StatusNotFound, "unknown command")
	}
}

type kuboCalls struct {
	add        int
	serviceAdd int
	pinAdd     int
	pinLs      int
	pinRm      int
}

func (f *fakeKubo) calls() kuboCalls {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return kuboCalls{
		add:        f.addCalls,
		serviceAdd: f.serviceAddCalls,
		pinAdd:     f.pinAddCalls,
		pinLs:      f.pinLsCalls,
		pinRm:      f.pinRmCalls,
	}
}

func (f *fakeKubo) configure(apply func(*fakeKubo)) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	apply(f)
}

func writeRPCError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(rpcError{Message: message, Type: "error"})
}
