package wallet

// HubManagerError wraps errors encountered with the HubManager
type HubManagerError struct {
	Message string
	Err     error
}

func (err HubManagerError) Error() string {
	m := err.Message
	if err.Err != nil {
		m += " : " + err.Err.Error()
	}
	return m
}

// Unwrap returns the embedded error
func (err HubManagerError) Unwrap() error {
	return err.Err
}
