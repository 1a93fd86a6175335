package interrupt

import "os"

// sendSelf delivers sig to the running process, used to exercise Install
// without depending on an external signal sender.
func sendSelf(sig os.Signal) error {
	p, err := os.FindProcess(os.Getpid())
	if err != nil {
		return err
	}
	return p.Signal(sig)
}
