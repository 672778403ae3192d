// Пакет fixture — одноразовая загрузка JSON-фикстуры media coverages
// в типизированные записи model.Coverage.
package fixture

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/bigkaa/imageloader/internal/domain/model"
)

// LoadFile читает фикстуру с диска.
// Формат — JSON-массив объектов Coverage.
func LoadFile(path string) ([]model.Coverage, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("ошибка открытия фикстуры %s: %w", path, err)
	}
	defer f.Close()

	records, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("фикстура %s: %w", path, err)
	}
	return records, nil
}

// Decode декодирует JSON-массив записей из reader.
// Пустой массив и null — корректные значения (ноль записей).
func Decode(r io.Reader) ([]model.Coverage, error) {
	var records []model.Coverage
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return nil, fmt.Errorf("ошибка десериализации: %w", err)
	}
	return records, nil
}
