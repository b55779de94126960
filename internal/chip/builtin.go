package chip

func builtins() []*Descriptor {
	return []*Descriptor{
		{
			Name: "esp32", MCUName: "ESP32", PinMin: 0, PinMax: 39,
			Instances: []string{
				"adc1", "adc2", "can0", "dac1", "dac2", "eth0",
				"i2c0", "i2c1", "i2s0", "i2s1", "rmt0",
				"sdmmc0", "sdmmc1", "spi2", "spi3",
				"uart0", "uart1", "uart2",
			},
		},
		{
			Name: "esp32s2", MCUName: "ESP32S2", PinMin: 0, PinMax: 46,
			Instances: []string{
				"adc1", "adc2", "dac1", "dac2",
				"i2c0", "i2c1", "i2s0", "rmt0", "spi2", "spi3",
				"uart0", "uart1", "usb0",
			},
		},
		{
			Name: "esp32s3", MCUName: "ESP32S3", PinMin: 0, PinMax: 48,
			Instances: []string{
				"adc1", "adc2", "can0",
				"i2c0", "i2c1", "i2s0", "i2s1", "rmt0",
				"sdmmc0", "sdmmc1", "spi2", "spi3",
				"uart0", "uart1", "uart2", "usb0",
			},
		},
		{
			Name: "esp32c3", MCUName: "ESP32C3", PinMin: 0, PinMax: 21,
			Instances: []string{
				"adc1", "can0", "i2c0", "i2s0", "rmt0", "spi2",
				"uart0", "uart1", "usb0",
			},
		},
		{
			Name: "esp32c6", MCUName: "ESP32C6", PinMin: 0, PinMax: 30,
			Instances: []string{
				"adc1", "can0", "can1", "i2c0", "i2s0", "rmt0", "spi2",
				"uart0", "uart1", "usb0",
			},
		},
		{
			Name: "esp32h2", MCUName: "ESP32H2", PinMin: 0, PinMax: 27,
			Instances: []string{
				"adc1", "can0", "i2c0", "i2c1", "i2s0", "rmt0", "spi2",
				"uart0", "uart1", "usb0",
			},
		},
		{
			// GPIO 0-28 as exposed by the Pico.
			Name: "rp2040", MCUName: "RP2040", PinMin: 0, PinMax: 28,
			Instances: []string{
				"adc0", "i2c0", "i2c1", "spi0", "spi1",
				"uart0", "uart1", "usb0",
			},
		},
	}
}
