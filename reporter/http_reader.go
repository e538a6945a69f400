// Reader is a testing facility to read the output of a http reporter.

package reporter

import (
	"io"
	"net/http"
)

type HttpReader struct {
	serverIP   string // listen ip
	serverPort string // listen port
}

func NewHttpReader(serverIP string, serverPort string) *HttpReader {
	return &HttpReader{
		serverIP:   serverIP,
		serverPort: serverPort,
	}
}

func (hr *HttpReader) get(route string) (string, error) {
	url := "http://" + hr.serverIP + ":" + hr.serverPort + route

	resp, err := http.Get(url)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

func (hr *HttpReader) GetHealth() (string, error) {
	return hr.get(ROUTE_HEALTH)
}

func (hr *HttpReader) GetTransaction(txID string) (string, error) {
	return hr.get(ROUTE_TRANSACTIONS + "/" + txID)
}

func (hr *HttpReader) GetReserves() (string, error) {
	return hr.get(ROUTE_RESERVES)
}
