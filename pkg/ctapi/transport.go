package ctapi

import "github.com/gregLibert/ct-terminal/pkg/ctbcs"

// Transport is the CT-API driver underneath a terminal: CT_init, CT_data and
// CT_close. One exchange is in flight per terminal number at a time.
type Transport interface {
	// Open binds terminal number ctn to port.
	Open(ctn uint16, port ctbcs.Port) error

	// Exchange sends cmd from sad to dad and returns the full response,
	// status bytes included.
	Exchange(ctn uint16, dad, sad ctbcs.Address, cmd []byte) ([]byte, error)

	// Close releases terminal number ctn.
	Close(ctn uint16) error
}
