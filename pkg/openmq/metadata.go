package openmq

// Metadata describes the messaging provider behind a connection.
type Metadata struct {
	ProviderName         string
	ProviderVersion      string
	ProviderMajorVersion int32
	ProviderMinorVersion int32
	JMSVersion           string
	JMSMajorVersion      int32
	JMSMinorVersion      int32
}

func defaultMetadata() Metadata {
	return Metadata{
		ProviderName:         "OpenMQ",
		ProviderVersion:      "5.1",
		ProviderMajorVersion: 5,
		ProviderMinorVersion: 1,
		JMSVersion:           "1.1",
		JMSMajorVersion:      1,
		JMSMinorVersion:      1,
	}
}
